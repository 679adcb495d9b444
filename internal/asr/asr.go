// Package asr turns captured PCM audio into transcript chunks and
// publishes them on the event bus.
package asr

import (
	"context"
	"sync"
)

// Result is one transcription outcome.
type Result struct {
	Text       string
	Confidence float64
}

// Transcriber converts a PCM window into text. Implementations must be
// safe for concurrent use.
type Transcriber interface {
	// Transcribe blocks until the audio is transcribed or ctx is done.
	// PCM is 16-bit little-endian mono at sampleRate.
	Transcribe(ctx context.Context, pcm []byte, sampleRate uint32) (Result, error)

	// Name identifies the provider in logs.
	Name() string
}

// Fake is a scripted transcriber for tests. Each call returns the next
// scripted result; after the script is exhausted it repeats the last
// entry.
type Fake struct {
	mu      sync.Mutex
	script  []Result
	err     error
	calls   int
	gotPCM  [][]byte
	gotRate uint32
}

// NewFake creates a fake transcriber returning the given results in order.
func NewFake(script ...Result) *Fake {
	return &Fake{script: script}
}

// Fail makes every subsequent call return err.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Calls returns how many times Transcribe ran.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// PCM returns the audio windows received so far.
func (f *Fake) PCM() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.gotPCM))
	copy(out, f.gotPCM)
	return out
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Transcribe(ctx context.Context, pcm []byte, sampleRate uint32) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	f.gotPCM = append(f.gotPCM, buf)
	f.gotRate = sampleRate

	if f.err != nil {
		return Result{}, f.err
	}
	if len(f.script) == 0 {
		return Result{}, nil
	}
	idx := f.calls - 1
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	return f.script[idx], nil
}
