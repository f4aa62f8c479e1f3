package config

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

var knownCodecs = map[string]bool{
	"h264": true,
	"hevc": true,
	"vp8":  true,
	"vp9":  true,
}

var knownSampleFormats = map[string]bool{
	"i16": true,
	"f32": true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// ValidationResult separates validation failures that must block startup
// (Fatals) from ones that are logged and otherwise ignored (Warnings).
type ValidationResult struct {
	Fatals   []error
	Warnings []error
}

// HasFatals reports whether startup should be aborted.
func (r ValidationResult) HasFatals() bool { return len(r.Fatals) > 0 }

// AllErrors returns fatals followed by warnings, for callers that just
// want to log everything found.
func (r ValidationResult) AllErrors() []error {
	all := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	all = append(all, r.Fatals...)
	all = append(all, r.Warnings...)
	return all
}

// ValidateTiered checks the config and clamps dangerous zero-values to
// safe defaults in place, same posture as the teacher's Validate: clamp
// what would otherwise panic downstream, fail hard on what can't be
// recovered from automatically.
func (c *Config) ValidateTiered() ValidationResult {
	var r ValidationResult

	if c.PeerID == "" {
		r.Fatals = append(r.Fatals, fmt.Errorf("peer_id must not be empty"))
	}

	if c.SignalingURL != "" {
		u, err := url.Parse(c.SignalingURL)
		if err != nil {
			r.Fatals = append(r.Fatals, fmt.Errorf("signaling_url %q is not a valid URL: %w", c.SignalingURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "wss" && u.Scheme != "ws" {
			r.Fatals = append(r.Fatals, fmt.Errorf("signaling_url scheme must be http(s) or ws(s), got %q", u.Scheme))
		}
	}

	for _, r2 := range c.TLSCertFile {
		if unicode.IsControl(r2) {
			r.Fatals = append(r.Fatals, fmt.Errorf("tls_cert_file contains control characters"))
			break
		}
	}

	if len(c.CodecPreference) == 0 {
		r.Warnings = append(r.Warnings, fmt.Errorf("codec_preference is empty, negotiation will fail"))
	}
	for _, name := range c.CodecPreference {
		if !knownCodecs[strings.ToLower(name)] {
			r.Warnings = append(r.Warnings, fmt.Errorf("unknown codec %q in codec_preference", name))
		}
	}

	for _, name := range c.SampleFormats {
		if !knownSampleFormats[strings.ToLower(name)] {
			r.Warnings = append(r.Warnings, fmt.Errorf("unknown sample format %q", name))
		}
	}

	if c.MaxSampleRate < 8000 {
		r.Warnings = append(r.Warnings, fmt.Errorf("max_sample_rate %d is below minimum 8000, clamping", c.MaxSampleRate))
		c.MaxSampleRate = 8000
	} else if c.MaxSampleRate > 192000 {
		r.Warnings = append(r.Warnings, fmt.Errorf("max_sample_rate %d exceeds maximum 192000, clamping", c.MaxSampleRate))
		c.MaxSampleRate = 192000
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error)", c.LogLevel))
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.Warnings = append(r.Warnings, fmt.Errorf("log_format %q is not valid (use text or json)", c.LogFormat))
	}

	if c.WorkerPoolSize < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("worker_pool_size %d is below minimum 1, clamping", c.WorkerPoolSize))
		c.WorkerPoolSize = 1
	} else if c.WorkerPoolSize > 256 {
		r.Warnings = append(r.Warnings, fmt.Errorf("worker_pool_size %d exceeds maximum 256, clamping", c.WorkerPoolSize))
		c.WorkerPoolSize = 256
	}

	if c.WorkerPoolQueueSize < 1 {
		r.Warnings = append(r.Warnings, fmt.Errorf("worker_pool_queue_size %d is below minimum 1, clamping", c.WorkerPoolQueueSize))
		c.WorkerPoolQueueSize = 1
	}

	if c.RecordingEnabled && c.RecordingBucket == "" {
		r.Warnings = append(r.Warnings, fmt.Errorf("recording_enabled is true but recording_bucket is empty, archival will stay disabled"))
	}

	return r
}
