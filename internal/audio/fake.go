package audio

import (
	"sync"
	"time"

	"github.com/EduardoFdeM/PitchAI/internal/event/events"
)

const fakeFrameSamples = 1024

// FakeContext replays a PCM buffer through the Context interface so the
// pipeline can run without real hardware.
type FakeContext struct {
	pcm      []byte
	realtime bool
}

// NewFakeContext creates a fake backend that feeds pcm to every capture
// device it opens. With realtime set, frames are paced at the capture
// sample rate; otherwise the whole buffer is delivered immediately on
// Start and silence follows.
func NewFakeContext(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake capture"}}, nil
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, source events.AudioSource, config CaptureConfig, cb FrameCallback) (CaptureDevice, error) {
	rate := config.SampleRate
	if rate == 0 {
		rate = DefaultSampleRate
	}
	return &FakeCapture{
		pcm:      f.pcm,
		realtime: f.realtime,
		source:   source,
		rate:     rate,
		cb:       cb,
	}, nil
}

func (f *FakeContext) Close() {}

// FakeCapture is the device side of FakeContext.
type FakeCapture struct {
	pcm      []byte
	realtime bool
	source   events.AudioSource
	rate     uint32
	cb       FrameCallback

	mu       sync.Mutex
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (c *FakeCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopCh = make(chan struct{})
	c.feedDone = make(chan struct{})

	chunkBytes := fakeFrameSamples * BytesPerSample

	if !c.realtime {
		for pos := 0; pos < len(c.pcm); pos += chunkBytes {
			end := pos + chunkBytes
			if end > len(c.pcm) {
				end = len(c.pcm)
			}
			chunk := make([]byte, end-pos)
			copy(chunk, c.pcm[pos:end])
			c.cb(Frame{Source: c.source, PCM: chunk})
		}
		close(c.feedDone)
		return nil
	}

	interval := time.Duration(fakeFrameSamples) * time.Second / time.Duration(c.rate)
	stopCh := c.stopCh
	feedDone := c.feedDone
	go func() {
		defer close(feedDone)
		pos := 0
		silence := make([]byte, chunkBytes)
		for {
			select {
			case <-stopCh:
				return
			case <-time.After(interval):
			}

			if pos < len(c.pcm) {
				end := pos + chunkBytes
				if end > len(c.pcm) {
					end = len(c.pcm)
				}
				chunk := make([]byte, end-pos)
				copy(chunk, c.pcm[pos:end])
				c.cb(Frame{Source: c.source, PCM: chunk})
				pos = end
			} else {
				c.cb(Frame{Source: c.source, PCM: silence})
			}
		}
	}()
	return nil
}

func (c *FakeCapture) Stop() {
	c.mu.Lock()
	stopCh, feedDone := c.stopCh, c.feedDone
	c.mu.Unlock()

	if stopCh == nil {
		return
	}
	select {
	case <-stopCh:
	default:
		close(stopCh)
	}
	<-feedDone
}

func (c *FakeCapture) Close() {}
