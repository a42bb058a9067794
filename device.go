package main

import (
	"fmt"
	"strings"

	"dikto/audio"
	"dikto/encoder"
	"dikto/log"
)

// resolveDevice maps a configured device name to a concrete device.
// Empty name means system default (nil). An unknown name falls back to
// the default with a warning instead of refusing to start, so a
// detached USB mic does not brick the config.
func resolveDevice(ctx audio.Context, name string) (*audio.DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}

	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing capture devices: %w", err)
	}
	for i := range devices {
		if strings.EqualFold(devices[i].Name, name) {
			return &devices[i], nil
		}
	}
	// Partial match covers pulse's long descriptive names.
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), strings.ToLower(name)) {
			return &devices[i], nil
		}
	}

	log.Warnf("capture device %q not found, using system default", name)
	return nil, nil
}

// openCapture opens the capture device and logs what we actually got,
// with a latency warning for bluetooth mics.
func openCapture(ctx audio.Context, device *audio.DeviceInfo) (audio.CaptureDevice, error) {
	capture, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("opening capture device: %w", err)
	}

	name := capture.DeviceName()
	log.Info("capture_device: " + name)
	if audio.IsBluetooth(name) {
		log.Warn("bluetooth microphone detected, expect extra latency and possible dropouts")
	}
	return capture, nil
}

func deviceLine(capture audio.CaptureDevice) string {
	return "mic: " + capture.DeviceName()
}
