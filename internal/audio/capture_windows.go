//go:build windows

package audio

import (
	"fmt"

	"github.com/go-ole/go-ole"
)

// wasapiCapturer is a scaffold for WASAPI loopback capture (spec §4.7),
// mirroring the teacher's COM-driven IMMDeviceEnumerator/IAudioClient
// dance in audio_windows.go. Only the Capturer interface boundary and COM
// lifecycle are implemented here; the buffer pump is a TODO pending real
// IAudioCaptureClient bindings.
type wasapiCapturer struct {
	callback func(PCMBlock)
	stopped  chan struct{}
}

// NewCapturer constructs the Windows audio capture backend.
func NewCapturer() Capturer { return &wasapiCapturer{} }

func (w *wasapiCapturer) Start(callback func(PCMBlock)) error {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		return fmt.Errorf("audio: CoInitializeEx: %w", err)
	}
	w.callback = callback
	w.stopped = make(chan struct{})
	return nil
}

func (w *wasapiCapturer) Stop() {
	if w.stopped != nil {
		close(w.stopped)
	}
	ole.CoUninitialize()
}
