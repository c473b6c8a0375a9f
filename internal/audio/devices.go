package audio

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Device is an input-capable PortAudio device as shown by --list-audio-devices.
type Device struct {
	Name       string
	HostAPI    string
	Channels   int
	SampleRate float64
	Default    bool
	Loopback   bool
	Score      int
}

// ListDevices returns every input device, best auto-detect candidate first.
func ListDevices() ([]Device, error) {
	all, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	defaults := defaultIndexes()

	devices := make([]Device, 0, len(all))
	for _, d := range all {
		score := scoreDevice(d, defaults)
		if score < 0 {
			continue
		}
		dev := Device{
			Name:       d.Name,
			Channels:   d.MaxInputChannels,
			SampleRate: d.DefaultSampleRate,
			Default:    slices.Contains(defaults, d.Index),
			Loopback:   isLoopback(d.Name),
			Score:      score,
		}
		if d.HostApi != nil {
			dev.HostAPI = d.HostApi.Name
		}
		devices = append(devices, dev)
	}

	slices.SortStableFunc(devices, func(a, b Device) int {
		if a.Score != b.Score {
			return b.Score - a.Score
		}
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return devices, nil
}

// AutoDetectDevice returns the best available input device PortAudio can find.
func AutoDetectDevice() (*portaudio.DeviceInfo, error) {
	return findDevice("")
}

func findDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name)
	}

	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
		return dev, nil
	}

	if host, err := portaudio.DefaultHostApi(); err == nil {
		if host != nil && host.DefaultInputDevice != nil && host.DefaultInputDevice.MaxInputChannels > 0 {
			return host.DefaultInputDevice, nil
		}
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	defaults := defaultIndexes()
	if candidate := pickBestDevice(devices, defaults); candidate != nil {
		return candidate, nil
	}
	return nil, ErrNoDevice
}

func findDeviceByName(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}

	name = strings.ToLower(name)
	for _, device := range devices {
		if device.MaxInputChannels == 0 {
			continue
		}
		if strings.Contains(strings.ToLower(device.Name), name) {
			return device, nil
		}
	}

	return nil, fmt.Errorf("audio device %q: %w", name, ErrNoDevice)
}

// defaultIndexes returns the device indexes PortAudio reports as default
// inputs, globally and for the default host API.
func defaultIndexes() []int {
	var out []int
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		out = append(out, def.Index)
	}
	if host, err := portaudio.DefaultHostApi(); err == nil && host != nil && host.DefaultInputDevice != nil {
		out = append(out, host.DefaultInputDevice.Index)
	}
	return out
}

var loopbackKeywords = []string{"monitor", "loopback", "mix", "stereo mix", "what u hear"}

// scoreDevice ranks input devices. Defaults win, then loopback style inputs
// that carry whatever the machine is playing.
func scoreDevice(d *portaudio.DeviceInfo, defaults []int) int {
	if d == nil || d.MaxInputChannels <= 0 {
		return -1
	}

	score := d.MaxInputChannels
	for i, idx := range defaults {
		if d.Index == idx {
			score += 50 - 10*i
		}
	}

	if isLoopback(d.Name) {
		score += 20
	}
	if strings.Contains(strings.ToLower(d.Name), "default") {
		score += 10
	}
	return score
}

func isLoopback(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range loopbackKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func pickBestDevice(devices []*portaudio.DeviceInfo, defaults []int) *portaudio.DeviceInfo {
	var (
		best      *portaudio.DeviceInfo
		bestScore = -1
	)
	for _, d := range devices {
		score := scoreDevice(d, defaults)
		if score < 0 {
			continue
		}
		if score > bestScore || (score == bestScore && strings.ToLower(d.Name) < strings.ToLower(best.Name)) {
			best, bestScore = d, score
		}
	}
	return best
}
