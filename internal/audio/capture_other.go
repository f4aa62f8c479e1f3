//go:build !windows

package audio

// silentCapturer is the portable fallback: it never calls back, matching
// the teacher's NewAudioCapturer returning nil on non-Windows platforms,
// but kept non-nil here so callers can always invoke Start/Stop safely.
type silentCapturer struct{}

// NewCapturer returns the portable backend. Real capture is Windows-only
// for now, mirroring audio_other.go.
func NewCapturer() Capturer { return silentCapturer{} }

func (silentCapturer) Start(callback func(PCMBlock)) error { return nil }
func (silentCapturer) Stop()                                {}
