// Package audio captures PCM frames from the microphone and, where the
// platform supports it, system playback loopback. Frames are 16-bit
// little-endian mono at the configured sample rate.
package audio

import "github.com/EduardoFdeM/PitchAI/internal/event/events"

// DefaultSampleRate matches what the transcription providers expect.
const DefaultSampleRate = 16000

// BytesPerSample is the size of one 16-bit mono sample.
const BytesPerSample = 2

// Frame is one block of captured PCM with its origin.
type Frame struct {
	Source events.AudioSource
	PCM    []byte
}

// FrameCallback receives captured frames. It runs on the capture
// backend's thread and must not block.
type FrameCallback func(frame Frame)

// CaptureConfig configures a capture device.
type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

// DefaultCaptureConfig returns the standard mono capture configuration.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{SampleRate: DefaultSampleRate, Channels: 1}
}

// DeviceInfo describes an available capture device.
type DeviceInfo struct {
	// ID is an opaque platform-specific identifier.
	ID string

	// Name is the human-readable device name.
	Name string
}

// Context owns the audio backend and creates capture devices.
type Context interface {
	// Devices lists the available capture devices.
	Devices() ([]DeviceInfo, error)

	// NewCapture opens a capture device. A nil device selects the
	// platform default. The callback receives frames tagged with source.
	NewCapture(device *DeviceInfo, source events.AudioSource, config CaptureConfig, cb FrameCallback) (CaptureDevice, error)

	// Close releases the backend.
	Close()
}

// CaptureDevice is a running or stopped capture stream.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
}

// DurationMS converts a PCM byte count to milliseconds at the given rate.
func DurationMS(pcmBytes int, sampleRate uint32) int64 {
	if sampleRate == 0 {
		return 0
	}
	samples := int64(pcmBytes / BytesPerSample)
	return samples * 1000 / int64(sampleRate)
}
