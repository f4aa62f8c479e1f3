// Package config loads MirrorX endpoint configuration, adapted from the
// teacher's viper+mapstructure loader (internal/config/config.go).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/viper"

	"github.com/mirrorx/endpoint/internal/logging"
)

var log = logging.L("config")

// Config holds everything an endpoint process needs to run either the
// active or passive role.
type Config struct {
	PeerID       string `mapstructure:"peer_id"`
	SignalingURL string `mapstructure:"signaling_url"`
	ListenAddr   string `mapstructure:"listen_addr"`

	// TLS/mTLS material for the signaling control channel.
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`
	TLSCAFile   string `mapstructure:"tls_ca_file"`

	// Negotiation preferences.
	CodecPreference    []string `mapstructure:"codec_preference"`
	SampleFormats      []string `mapstructure:"sample_formats"`
	MaxSampleRate      uint32   `mapstructure:"max_sample_rate"`
	DualChannel        bool     `mapstructure:"dual_channel"`
	PreferredMonitorID string   `mapstructure:"preferred_monitor_id"`
	RequestedFrameRate uint32   `mapstructure:"requested_frame_rate"`

	// Logging.
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`

	// Worker pool sizing (internal/workerpool, shared by the mux).
	WorkerPoolSize      int `mapstructure:"worker_pool_size"`
	WorkerPoolQueueSize int `mapstructure:"worker_pool_queue_size"`

	// File transfer.
	FileTransferAllowedDirs []string `mapstructure:"file_transfer_allowed_dirs"`

	// Recording (internal/recording, optional S3 archival).
	RecordingEnabled     bool   `mapstructure:"recording_enabled"`
	RecordingBucket      string `mapstructure:"recording_bucket"`
	RecordingRegion      string `mapstructure:"recording_region"`
	RecordingPrefix      string `mapstructure:"recording_prefix"`
	RecordingEndpoint    string `mapstructure:"recording_endpoint"`
	RecordingAccessKeyID string `mapstructure:"recording_access_key_id"`
	RecordingSecretKey   string `mapstructure:"recording_secret_access_key"`
}

// Default returns a Config populated with the values a fresh install
// should run with.
func Default() *Config {
	return &Config{
		ListenAddr:          "0.0.0.0:7846",
		CodecPreference:     []string{"h264", "vp8"},
		SampleFormats:       []string{"i16"},
		MaxSampleRate:       48000,
		RequestedFrameRate:  30,
		LogLevel:            "info",
		LogFormat:           "text",
		LogMaxSizeMB:        50,
		LogMaxBackups:       3,
		WorkerPoolSize:      8,
		WorkerPoolQueueSize: 64,
	}
}

// Load reads cfgFile (or the platform default location), applies
// MIRRORX_-prefixed env overrides, and validates the result. Warnings are
// logged and do not block startup; fatal errors do.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("endpoint")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(configDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MIRRORX")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	result := cfg.ValidateTiered()
	for _, err := range result.Warnings {
		log.Warn("config validation", "error", err)
	}
	if result.HasFatals() {
		for _, err := range result.Fatals {
			log.Error("config validation fatal", "error", err)
		}
		return nil, fmt.Errorf("config has fatal validation errors: %v", result.Fatals[0])
	}

	return cfg, nil
}

// Save writes cfg to its default platform location.
func Save(cfg *Config) error {
	return SaveTo(cfg, "")
}

// SaveTo writes cfg to cfgFile, or the default location if empty.
func SaveTo(cfg *Config, cfgFile string) error {
	viper.Set("peer_id", cfg.PeerID)
	viper.Set("signaling_url", cfg.SignalingURL)
	viper.Set("listen_addr", cfg.ListenAddr)
	viper.Set("codec_preference", cfg.CodecPreference)
	viper.Set("sample_formats", cfg.SampleFormats)
	viper.Set("max_sample_rate", cfg.MaxSampleRate)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		dir := filepath.Dir(cfgPath)
		if dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "endpoint.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgPath); err != nil {
		return err
	}

	// Config may carry S3 credentials and key material paths; owner-only.
	return os.Chmod(cfgPath, 0600)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "MirrorX")
	case "darwin":
		return "/Library/Application Support/MirrorX"
	default:
		return "/etc/mirrorx"
	}
}
