package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

var (
	paMu   sync.Mutex
	paRefs int
)

// Initialize starts PortAudio on first use. Each successful call must be
// balanced by Terminate.
func Initialize() error {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		if err := portaudio.Initialize(); err != nil {
			return fmt.Errorf("portaudio init: %w", err)
		}
	}
	paRefs++
	return nil
}

// Terminate releases one Initialize. PortAudio shuts down with the last one.
func Terminate() {
	paMu.Lock()
	defer paMu.Unlock()
	if paRefs == 0 {
		return
	}
	paRefs--
	if paRefs == 0 {
		_ = portaudio.Terminate()
	}
}
