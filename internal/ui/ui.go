// Package ui renders the live call dashboard in the terminal. All state
// lives on the UI goroutine; bus deliveries arrive through the bridge
// and the tcell event queue.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/EduardoFdeM/PitchAI/internal/event"
	"github.com/EduardoFdeM/PitchAI/internal/event/events"
	"github.com/EduardoFdeM/PitchAI/internal/event/topic"
)

// Debounce windows for the high-frequency topics. The dashboard only
// needs the latest value, so intermediate updates are coalesced.
const (
	transcriptDebounce = 150 * time.Millisecond
	sentimentDebounce  = 100 * time.Millisecond
)

const maxTranscriptLines = 200

type transcriptLine struct {
	source events.AudioSource
	text   string
}

// UI is the terminal dashboard.
type UI struct {
	screen tcell.Screen
	bus    event.Bus
	bridge *event.Bridge
	sched  *Scheduler
	log    zerolog.Logger

	subs []event.Subscription

	// Model state. Touched only on the UI goroutine.
	transcript  []transcriptLine
	sentiment   events.SentimentUpdate
	hasSent     bool
	objections  []events.Objection
	suggestions []events.Suggestion
	status      string
	lastError   string
}

// New creates the dashboard on screen. The caller owns screen.Init and
// screen.Fini.
func New(screen tcell.Screen, bus event.Bus, bridge *event.Bridge, log zerolog.Logger) *UI {
	return &UI{
		screen: screen,
		bus:    bus,
		bridge: bridge,
		sched:  NewScheduler(screen),
		log:    log.With().Str("component", "ui").Logger(),
		status: "idle",
	}
}

// Attach registers the UI as the bridge's host context and subscribes
// to every dashboard topic.
func (u *UI) Attach() error {
	if err := u.bridge.RegisterHostContext(u.sched); err != nil {
		return err
	}

	for _, spec := range []struct {
		t      topic.Topic
		h      event.HandlerFunc
		policy event.DeliveryPolicy
	}{
		{topic.ChunkTranscribed, u.onChunk, event.Debounced(transcriptDebounce)},
		{topic.SentimentUpdated, u.onSentiment, event.Debounced(sentimentDebounce)},
		{topic.ObjectionDetected, u.onObjection, event.Immediate()},
		{topic.SuggestionsReady, u.onSuggestions, event.Immediate()},
		{topic.SummaryReady, u.onSummary, event.Immediate()},
		{topic.StatusChanged, u.onStatus, event.Immediate()},
		{topic.ErrorRaised, u.onError, event.Immediate()},
	} {
		sub, err := u.bus.SubscribeFunc(spec.t, spec.h,
			event.WithPolicy(spec.policy),
			event.WithSubscriberName("ui"),
			event.WithBridge(u.bridge))
		if err != nil {
			u.detach()
			return err
		}
		u.subs = append(u.subs, sub)
	}
	return nil
}

func (u *UI) detach() {
	for _, sub := range u.subs {
		_ = u.bus.Unsubscribe(sub)
	}
	u.subs = nil
}

// Run processes the tcell event loop until Close is called or the user
// quits. It must run on the goroutine that owns the screen.
func (u *UI) Run() {
	u.render()
	for {
		ev := u.screen.PollEvent()
		switch e := ev.(type) {
		case *workEvent:
			e.fn()
			u.render()
		case *quitEvent:
			return
		case *tcell.EventKey:
			if e.Key() == tcell.KeyEscape || e.Key() == tcell.KeyCtrlC ||
				(e.Key() == tcell.KeyRune && e.Rune() == 'q') {
				return
			}
		case *tcell.EventResize:
			u.screen.Sync()
			u.render()
		case nil:
			// Screen finalized under us.
			return
		}
	}
}

// Close tears the UI down. The bridge closes first so deliveries stop
// reaching the dead host loop, then the run loop is told to exit.
func (u *UI) Close() {
	u.detach()
	u.bridge.Close()
	u.sched.Close()
	_ = u.screen.PostEvent(&quitEvent{when: time.Now()})
}

func (u *UI) onChunk(ctx context.Context, env event.Envelope) error {
	chunk, ok := event.As[events.TranscriptChunk](env)
	if !ok {
		return nil
	}
	u.transcript = append(u.transcript, transcriptLine{source: chunk.Source, text: chunk.Text})
	if len(u.transcript) > maxTranscriptLines {
		u.transcript = u.transcript[len(u.transcript)-maxTranscriptLines:]
	}
	return nil
}

func (u *UI) onSentiment(ctx context.Context, env event.Envelope) error {
	s, ok := event.As[events.SentimentUpdate](env)
	if !ok {
		return nil
	}
	u.sentiment = s
	u.hasSent = true
	return nil
}

func (u *UI) onObjection(ctx context.Context, env event.Envelope) error {
	obj, ok := event.As[events.Objection](env)
	if !ok {
		return nil
	}
	u.objections = append(u.objections, obj)
	return nil
}

func (u *UI) onSuggestions(ctx context.Context, env event.Envelope) error {
	s, ok := event.As[events.Suggestions](env)
	if !ok {
		return nil
	}
	u.suggestions = s.Items
	return nil
}

func (u *UI) onSummary(ctx context.Context, env event.Envelope) error {
	if _, ok := event.As[events.Summary](env); ok {
		u.status = "summary ready"
	}
	return nil
}

func (u *UI) onStatus(ctx context.Context, env event.Envelope) error {
	st, ok := event.As[events.Status](env)
	if !ok {
		return nil
	}
	u.status = string(st.State)
	if st.State == events.CallStarted {
		u.transcript = nil
		u.objections = nil
		u.suggestions = nil
		u.hasSent = false
		u.lastError = ""
	}
	return nil
}

func (u *UI) onError(ctx context.Context, env event.Envelope) error {
	e, ok := event.As[events.Error](env)
	if !ok {
		return nil
	}
	u.lastError = fmt.Sprintf("[%s] %s: %s", e.Scope, e.Code, e.Message)
	return nil
}

var (
	styleDefault = tcell.StyleDefault
	styleHeader  = tcell.StyleDefault.Bold(true)
	styleMic     = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleRemote  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleAlert   = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleGood    = tcell.StyleDefault.Foreground(tcell.ColorGreen)
)

func (u *UI) render() {
	u.screen.Clear()
	width, height := u.screen.Size()
	if width == 0 || height == 0 {
		u.screen.Show()
		return
	}

	u.drawText(0, 0, width, styleHeader, fmt.Sprintf("PitchAI  %s", u.status))

	// Sentiment gauge.
	if u.hasSent {
		style := styleGood
		if u.sentiment.Valence < 0 {
			style = styleAlert
		}
		u.drawText(0, 1, width, style,
			fmt.Sprintf("sentiment %+.2f  engagement %.2f", u.sentiment.Valence, u.sentiment.Engagement))
	}

	// Transcript fills the left side; the newest lines win.
	top := 3
	bottom := height - 2
	transcriptWidth := width
	if width > 60 {
		transcriptWidth = width / 2
	}
	lines := u.transcript
	if max := bottom - top; len(lines) > max && max > 0 {
		lines = lines[len(lines)-max:]
	}
	for i, line := range lines {
		style := styleMic
		prefix := "you  "
		if line.source == events.SourceLoopback {
			style = styleRemote
			prefix = "them "
		}
		u.drawText(0, top+i, transcriptWidth-1, style, prefix+line.text)
	}

	// Objections and suggestions on the right half.
	if width > 60 {
		x := transcriptWidth + 1
		y := top
		u.drawText(x, y, width-x, styleHeader, "Objections")
		y++
		start := 0
		if len(u.objections) > 5 {
			start = len(u.objections) - 5
		}
		for _, obj := range u.objections[start:] {
			u.drawText(x, y, width-x, styleAlert,
				fmt.Sprintf("%s (%.0f%%) %s", obj.Category, obj.Confidence*100, obj.Snippet))
			y++
		}
		y++
		u.drawText(x, y, width-x, styleHeader, "Suggestions")
		y++
		for _, sug := range u.suggestions {
			u.drawText(x, y, width-x, styleGood, "- "+sug.Text)
			y++
		}
	}

	if u.lastError != "" {
		u.drawText(0, height-1, width, styleAlert, u.lastError)
	}

	u.screen.Show()
}

func (u *UI) drawText(x, y, maxWidth int, style tcell.Style, text string) {
	col := x
	for _, r := range text {
		if col >= x+maxWidth {
			return
		}
		u.screen.SetContent(col, y, r, nil, style)
		col++
	}
}
