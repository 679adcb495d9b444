// Package app wires the capture, analysis, coaching and persistence
// services to the event bus and manages the call session lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/EduardoFdeM/PitchAI/internal/asr"
	"github.com/EduardoFdeM/PitchAI/internal/audio"
	"github.com/EduardoFdeM/PitchAI/internal/coach"
	"github.com/EduardoFdeM/PitchAI/internal/config"
	"github.com/EduardoFdeM/PitchAI/internal/event"
	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
	"github.com/EduardoFdeM/PitchAI/internal/objection"
	"github.com/EduardoFdeM/PitchAI/internal/sentiment"
	"github.com/EduardoFdeM/PitchAI/internal/store"
	"github.com/EduardoFdeM/PitchAI/internal/summary"
	"github.com/EduardoFdeM/PitchAI/internal/ui"
)

// Option overrides a backend during construction. Used by tests and by
// the fake provider mode.
type Option func(*Application)

// WithAudioContext substitutes the audio backend.
func WithAudioContext(ctx audio.Context) Option {
	return func(a *Application) { a.audioCtx = ctx }
}

// WithTranscriber substitutes the transcription backend.
func WithTranscriber(tr asr.Transcriber) Option {
	return func(a *Application) { a.transcriber = tr }
}

// WithProvider substitutes the completion backend.
func WithProvider(p coach.Provider) Option {
	return func(a *Application) { a.provider = p }
}

// WithScreen substitutes the terminal screen.
func WithScreen(s tcell.Screen) Option {
	return func(a *Application) { a.screen = s }
}

// Application owns every component of a running session.
type Application struct {
	cfg config.Config
	log zerolog.Logger

	bus    event.Bus
	bridge *event.Bridge

	audioCtx    audio.Context
	transcriber asr.Transcriber
	provider    coach.Provider
	screen      tcell.Screen

	store     *store.Store
	sink      *store.Sink
	asr       *asr.Service
	sentiment *sentiment.Service
	objection *objection.Service
	rules     *objection.LuaRules
	coach     *coach.Service
	summary   *summary.Service
	dash      *ui.UI

	captures []audio.CaptureDevice
	callID   string
}

// New builds the application from configuration. Backends not injected
// through options are constructed from the config.
func New(cfg config.Config, log zerolog.Logger, opts ...Option) (*Application, error) {
	a := &Application{
		cfg: cfg,
		log: log.With().Str("component", "app").Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.bus = event.New(
		event.WithQueueCapacity(cfg.Bus.QueueCapacity),
		event.WithOverflow(overflowPolicy(cfg.Bus)),
		event.WithLogger(log),
	)

	if a.provider == nil {
		p, err := buildProvider(cfg)
		if err != nil {
			return nil, err
		}
		a.provider = p
	}
	if a.transcriber == nil {
		if cfg.OpenAIKey == "" {
			return nil, errors.New("app: OPENAI_API_KEY is required for transcription")
		}
		a.transcriber = asr.NewOpenAI(cfg.OpenAIKey, asr.WithModel(cfg.ASR.Model))
	}
	if a.audioCtx == nil {
		ctx, err := audio.NewContext()
		if err != nil {
			return nil, fmt.Errorf("open audio backend: %w", err)
		}
		a.audioCtx = ctx
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	a.store = st

	if cfg.Objection.RulesFile != "" {
		script, err := os.ReadFile(cfg.Objection.RulesFile)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("read rules file: %w", err)
		}
		rules, err := objection.NewLuaRules(string(script))
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("load rules file: %w", err)
		}
		a.rules = rules
	}

	a.sink = store.NewSink(a.bus, a.store, log)
	a.asr = asr.NewService(a.bus, a.transcriber,
		asr.WithServiceLogger(log),
		asr.WithSampleRate(uint32(cfg.Audio.SampleRate)),
		asr.WithWindow(cfg.ASR.Window))
	a.sentiment = sentiment.NewService(a.bus, sentiment.NewAnalyzer(sentiment.Lexicon{}), log)
	a.objection = objection.NewService(a.bus, objection.NewDetector(), a.rules, log)
	a.coach = coach.NewService(a.bus, a.provider, log)
	a.summary = summary.NewService(a.bus, a.provider, log)

	if !cfg.Headless {
		if a.screen == nil {
			screen, err := tcell.NewScreen()
			if err != nil {
				st.Close()
				return nil, fmt.Errorf("open terminal: %w", err)
			}
			if err := screen.Init(); err != nil {
				st.Close()
				return nil, fmt.Errorf("init terminal: %w", err)
			}
			a.screen = screen
		}
		a.bridge = event.NewBridge()
		a.dash = ui.New(a.screen, a.bus, a.bridge, log)
	}

	return a, nil
}

// Run starts the bus and all services, runs one call session and shuts
// everything down when ctx is cancelled or the user quits the dashboard.
func (a *Application) Run(ctx context.Context) error {
	if err := a.bus.Start(); err != nil {
		return err
	}

	if err := a.attach(); err != nil {
		a.shutdown(ctx)
		return err
	}

	if err := a.StartCall(ctx); err != nil {
		a.shutdown(ctx)
		return err
	}
	a.log.Info().Str("call_id", a.callID).Msg("session started")

	if a.dash != nil {
		uiDone := make(chan struct{})
		go func() {
			a.dash.Run()
			close(uiDone)
		}()
		select {
		case <-ctx.Done():
		case <-uiDone:
		}
	} else {
		<-ctx.Done()
	}

	// Shutdown gets its own deadline since ctx is usually already
	// cancelled by now.
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.StopCall(stopCtx); err != nil {
		a.log.Warn().Err(err).Msg("stop call")
	}
	a.shutdown(stopCtx)
	return nil
}

func (a *Application) attach() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"store", a.sink.Attach},
		{"sentiment", a.sentiment.Attach},
		{"objection", a.objection.Attach},
		{"coach", a.coach.Attach},
		{"summary", a.summary.Attach},
	}
	if a.dash != nil {
		steps = append(steps, struct {
			name string
			fn   func() error
		}{"ui", a.dash.Attach})
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("attach %s: %w", step.name, err)
		}
	}
	return nil
}

// StartCall begins a new call session: producers start and
// status-changed announces the call.
func (a *Application) StartCall(ctx context.Context) error {
	if a.callID != "" {
		return errors.New("app: call already running")
	}
	callID := uuid.NewString()

	a.asr.StartCall(callID)
	a.sentiment.Reset()

	if err := a.startCaptures(); err != nil {
		return err
	}
	a.callID = callID

	return a.bus.Publish(event.WithPublisher(ctx, "app"), topic.StatusChanged,
		events.Status{CallID: callID, State: events.CallStarted})
}

// StopCall ends the running session: captures stop, buffered audio is
// flushed through transcription and the summary is generated.
func (a *Application) StopCall(ctx context.Context) error {
	if a.callID == "" {
		return nil
	}
	callID := a.callID
	a.callID = ""

	a.stopCaptures()
	a.asr.Flush(ctx)
	a.settle(ctx)

	pubCtx := event.WithPublisher(ctx, "app")
	if err := a.bus.Publish(pubCtx, topic.StatusChanged,
		events.Status{CallID: callID, State: events.CallStopped}); err != nil {
		a.log.Warn().Err(err).Msg("publish call stopped")
	}

	if err := a.summary.Generate(pubCtx, callID); err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}
	return nil
}

// settle waits for the ingress queue to empty so the summary sees the
// flushed tail of the transcript. Best effort with a short deadline.
func (a *Application) settle(ctx context.Context) {
	deadline := time.Now().Add(2 * time.Second)
	streak := 0
	for time.Now().Before(deadline) && ctx.Err() == nil {
		if a.bus.Metrics().QueueDepth == 0 {
			streak++
			if streak >= 2 {
				return
			}
		} else {
			streak = 0
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (a *Application) startCaptures() error {
	cfg := audio.CaptureConfig{
		SampleRate: uint32(a.cfg.Audio.SampleRate),
		Channels:   1,
	}

	sources := []events.AudioSource{events.SourceMic}
	if a.cfg.Audio.Loopback {
		sources = append(sources, events.SourceLoopback)
	}

	for _, source := range sources {
		dev, err := a.audioCtx.NewCapture(nil, source, cfg, a.asr.Feed)
		if err != nil {
			if source == events.SourceLoopback {
				a.log.Warn().Err(err).Msg("loopback capture unavailable")
				continue
			}
			a.stopCaptures()
			return fmt.Errorf("open %s capture: %w", source, err)
		}
		if err := dev.Start(); err != nil {
			dev.Close()
			a.stopCaptures()
			return fmt.Errorf("start %s capture: %w", source, err)
		}
		a.captures = append(a.captures, dev)
	}
	return nil
}

func (a *Application) stopCaptures() {
	for _, dev := range a.captures {
		dev.Stop()
		dev.Close()
	}
	a.captures = nil
}

// shutdown tears components down in dependency order: producers first,
// then the bus with a drain so persisted topics settle, then storage.
func (a *Application) shutdown(ctx context.Context) {
	a.stopCaptures()
	a.coach.Detach()

	if err := a.bus.Stop(ctx, true); err != nil {
		a.log.Warn().Err(err).Msg("bus stop")
	}

	if a.dash != nil {
		a.dash.Close()
		a.screen.Fini()
	}
	if a.rules != nil {
		a.rules.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close store")
	}
	a.audioCtx.Close()

	if snap := a.bus.Metrics(); len(snap.Topics) > 0 {
		for t, m := range snap.Topics {
			a.log.Debug().
				Str("topic", t.String()).
				Uint64("published", m.Published).
				Uint64("delivered", m.Delivered).
				Uint64("dropped", m.Dropped).
				Uint64("failed", m.Failed).
				Dur("p95_latency", m.P95Latency).
				Msg("topic metrics")
		}
	}
	a.log.Info().Msg("shutdown complete")
}

func overflowPolicy(cfg config.BusConfig) event.OverflowPolicy {
	switch cfg.Overflow {
	case "drop-newest":
		return event.DropNewest()
	case "backpressure":
		return event.Backpressure(cfg.BackpressureTimeout)
	default:
		return event.DropOldest()
	}
}

func buildProvider(cfg config.Config) (coach.Provider, error) {
	switch cfg.Coach.Provider {
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, errors.New("app: ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return coach.NewAnthropic(cfg.AnthropicKey, cfg.Coach.Model), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, errors.New("app: OPENAI_API_KEY is required for the openai provider")
		}
		return coach.NewOpenAI(cfg.OpenAIKey, cfg.Coach.Model), nil
	case "fake":
		return coach.NewFakeProvider(`[{"text":"Acknowledge the concern and ask a clarifying question.","score":0.5}]`), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownProvider, cfg.Coach.Provider)
	}
}
