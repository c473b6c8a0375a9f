package app

import (
	"fmt"

	"github.com/eiannone/keyboard"
	"github.com/guidoenr/spectra/internal/analyzer"
)

type inputEvent int

const (
	inputEventQuit inputEvent = iota
	inputEventReset
	inputEventNextWindow
	inputEventBandsDown
	inputEventBandsUp
	inputEventFFTDown
	inputEventFFTUp
	inputEventSmoothingDown
	inputEventSmoothingUp
	inputEventAttackDown
	inputEventAttackUp
	inputEventReleaseDown
	inputEventReleaseUp
	inputEventHopDown
	inputEventHopUp
	inputEventNextPreset
)

var keyBindings = map[rune]inputEvent{
	'q': inputEventQuit,
	'Q': inputEventQuit,
	'r': inputEventReset,
	'R': inputEventReset,
	'w': inputEventNextWindow,
	'W': inputEventNextWindow,
	'[': inputEventBandsDown,
	']': inputEventBandsUp,
	'-': inputEventFFTDown,
	'=': inputEventFFTUp,
	's': inputEventSmoothingDown,
	'S': inputEventSmoothingUp,
	'a': inputEventAttackDown,
	'A': inputEventAttackUp,
	'd': inputEventReleaseDown,
	'D': inputEventReleaseUp,
	'h': inputEventHopDown,
	'H': inputEventHopUp,
	'p': inputEventNextPreset,
	'P': inputEventNextPreset,
}

func eventForKey(char rune, key keyboard.Key) (inputEvent, bool) {
	if key == keyboard.KeyEsc || key == keyboard.KeyCtrlC {
		return inputEventQuit, true
	}
	evt, ok := keyBindings[char]
	return evt, ok
}

const (
	rateStep = 1.25
	maxBands = 4096
	maxFFT   = 1 << 16
)

// applyEvent maps a hotkey onto engine setters and describes the change.
// Quit and preset events are handled by the caller.
func applyEvent(e *analyzer.Engine, evt inputEvent) string {
	switch evt {
	case inputEventReset:
		e.Reset()
		return "reset"
	case inputEventNextWindow:
		e.SetWindow(nextWindow(e.Window()))
		return "window=" + e.Window().String()
	case inputEventBandsDown:
		e.SetTargetBands(max(1, e.TargetBands()/2))
		return fmt.Sprintf("bands=%d", e.TargetBands())
	case inputEventBandsUp:
		e.SetTargetBands(min(maxBands, e.TargetBands()*2))
		return fmt.Sprintf("bands=%d", e.TargetBands())
	case inputEventFFTDown:
		e.SetFFTSize(e.FFTSize() / 2)
		return fmt.Sprintf("fft=%d", e.FFTSize())
	case inputEventFFTUp:
		e.SetFFTSize(min(maxFFT, e.FFTSize()*2))
		return fmt.Sprintf("fft=%d", e.FFTSize())
	case inputEventSmoothingDown:
		e.SetSmoothingSteps(max(0, e.SmoothingSteps()-1))
		return fmt.Sprintf("smoothing=%d", e.SmoothingSteps())
	case inputEventSmoothingUp:
		e.SetSmoothingSteps(e.SmoothingSteps() + 1)
		return fmt.Sprintf("smoothing=%d", e.SmoothingSteps())
	case inputEventAttackDown:
		e.SetAttackRate(e.AttackRate() / rateStep)
		return fmt.Sprintf("attack=%.2f", e.AttackRate())
	case inputEventAttackUp:
		e.SetAttackRate(e.AttackRate() * rateStep)
		return fmt.Sprintf("attack=%.2f", e.AttackRate())
	case inputEventReleaseDown:
		e.SetReleaseRate(e.ReleaseRate() / rateStep)
		return fmt.Sprintf("release=%.2f", e.ReleaseRate())
	case inputEventReleaseUp:
		e.SetReleaseRate(e.ReleaseRate() * rateStep)
		return fmt.Sprintf("release=%.2f", e.ReleaseRate())
	case inputEventHopDown:
		e.SetHopSize(e.HopSize() / 2)
		return fmt.Sprintf("hop=%d", e.HopSize())
	case inputEventHopUp:
		e.SetHopSize(e.HopSize() * 2)
		return fmt.Sprintf("hop=%d", e.HopSize())
	}
	return ""
}

func nextWindow(w analyzer.WindowType) analyzer.WindowType {
	all := analyzer.WindowTypes()
	for i, candidate := range all {
		if candidate == w {
			return all[(i+1)%len(all)]
		}
	}
	return all[0]
}
