package asr

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/EduardoFdeM/PitchAI/internal/audio"
	"github.com/EduardoFdeM/PitchAI/internal/event"
	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// DefaultWindow is how much audio is batched per transcription request.
const DefaultWindow = 3 * time.Second

// Service batches captured PCM into fixed windows per source,
// transcribes each window and publishes chunk-transcribed events.
type Service struct {
	bus        event.Bus
	tr         Transcriber
	log        zerolog.Logger
	sampleRate uint32
	window     time.Duration

	mu      sync.Mutex
	callID  string
	buffers map[events.AudioSource]*sourceBuffer
	wg      sync.WaitGroup
}

type sourceBuffer struct {
	pcm []byte
	// consumedMS is how much audio from this source has already been cut
	// into windows, i.e. the start offset of the pending buffer.
	consumedMS int64
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the service logger.
func WithServiceLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.log = l.With().Str("component", "asr").Logger()
	}
}

// WithSampleRate sets the PCM sample rate. Default 16 kHz.
func WithSampleRate(rate uint32) ServiceOption {
	return func(s *Service) {
		if rate > 0 {
			s.sampleRate = rate
		}
	}
}

// WithWindow sets the transcription window. Default 3s.
func WithWindow(w time.Duration) ServiceOption {
	return func(s *Service) {
		if w > 0 {
			s.window = w
		}
	}
}

// NewService creates the transcription service.
func NewService(bus event.Bus, tr Transcriber, opts ...ServiceOption) *Service {
	s := &Service{
		bus:        bus,
		tr:         tr,
		log:        zerolog.Nop(),
		sampleRate: audio.DefaultSampleRate,
		window:     DefaultWindow,
		buffers:    make(map[events.AudioSource]*sourceBuffer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartCall resets per-source buffers for a new call.
func (s *Service) StartCall(callID string) {
	s.mu.Lock()
	s.callID = callID
	s.buffers = make(map[events.AudioSource]*sourceBuffer)
	s.mu.Unlock()
}

// windowBytes is the PCM size of one full transcription window.
func (s *Service) windowBytes() int {
	samples := int(s.window.Seconds() * float64(s.sampleRate))
	return samples * audio.BytesPerSample
}

// Feed accepts one captured frame. Full windows are cut off and
// transcribed on their own goroutine so the capture callback never
// blocks on the network.
func (s *Service) Feed(frame audio.Frame) {
	s.mu.Lock()
	if s.callID == "" {
		s.mu.Unlock()
		return
	}
	buf, ok := s.buffers[frame.Source]
	if !ok {
		buf = &sourceBuffer{}
		s.buffers[frame.Source] = buf
	}
	buf.pcm = append(buf.pcm, frame.PCM...)

	limit := s.windowBytes()
	var windows []windowJob
	for len(buf.pcm) >= limit {
		pcm := make([]byte, limit)
		copy(pcm, buf.pcm[:limit])
		buf.pcm = buf.pcm[limit:]

		startMS := buf.consumedMS
		endMS := startMS + audio.DurationMS(limit, s.sampleRate)
		buf.consumedMS = endMS
		windows = append(windows, windowJob{
			callID:  s.callID,
			source:  frame.Source,
			pcm:     pcm,
			startMS: startMS,
			endMS:   endMS,
		})
	}
	s.mu.Unlock()

	for _, w := range windows {
		s.wg.Add(1)
		go s.transcribe(w)
	}
}

// Flush transcribes any partial windows and waits for in-flight
// requests. Call it when the call ends, before stopping the bus.
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	var windows []windowJob
	for source, buf := range s.buffers {
		if len(buf.pcm) == 0 {
			continue
		}
		pcm := buf.pcm
		buf.pcm = nil
		startMS := buf.consumedMS
		endMS := startMS + audio.DurationMS(len(pcm), s.sampleRate)
		buf.consumedMS = endMS
		windows = append(windows, windowJob{
			callID:  s.callID,
			source:  source,
			pcm:     pcm,
			startMS: startMS,
			endMS:   endMS,
		})
	}
	s.mu.Unlock()

	for _, w := range windows {
		s.wg.Add(1)
		go s.transcribe(w)
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

type windowJob struct {
	callID  string
	source  events.AudioSource
	pcm     []byte
	startMS int64
	endMS   int64
}

func (s *Service) transcribe(w windowJob) {
	defer s.wg.Done()

	ctx := event.WithPublisher(context.Background(), "asr")
	res, err := s.tr.Transcribe(ctx, w.pcm, s.sampleRate)
	if err != nil {
		s.log.Warn().Err(err).
			Str("call_id", w.callID).
			Str("source", string(w.source)).
			Msg("transcription failed")
		s.publishError(ctx, err)
		return
	}
	if res.Text == "" {
		return
	}

	chunk := events.TranscriptChunk{
		CallID:     w.callID,
		Source:     w.source,
		StartMS:    w.startMS,
		EndMS:      w.endMS,
		Text:       res.Text,
		Confidence: res.Confidence,
	}
	if err := s.bus.Publish(ctx, topic.ChunkTranscribed, chunk); err != nil {
		s.log.Warn().Err(err).Str("call_id", w.callID).Msg("publish chunk failed")
	}
}

func (s *Service) publishError(ctx context.Context, cause error) {
	payload := events.Error{
		Scope:   events.ScopeASR,
		Code:    "transcription-failed",
		Message: cause.Error(),
	}
	if err := s.bus.Publish(ctx, topic.ErrorRaised, payload); err != nil {
		s.log.Debug().Err(err).Msg("publish error event failed")
	}
}
