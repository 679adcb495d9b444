package asr

import (
	"bytes"
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAI transcribes audio through the Whisper API.
type OpenAI struct {
	client openai.Client
	model  openai.AudioModel
}

// OpenAIOption configures the OpenAI transcriber.
type OpenAIOption func(*OpenAI)

// WithModel overrides the default whisper-1 model.
func WithModel(model string) OpenAIOption {
	return func(o *OpenAI) {
		o.model = openai.AudioModel(model)
	}
}

// NewOpenAI creates a Whisper transcriber.
func NewOpenAI(apiKey string, opts ...OpenAIOption) *OpenAI {
	o := &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  openai.AudioModelWhisper1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *OpenAI) Name() string { return "openai-whisper" }

func (o *OpenAI) Transcribe(ctx context.Context, pcm []byte, sampleRate uint32) (Result, error) {
	if len(pcm) == 0 {
		return Result{}, nil
	}

	wav := encodeWAV(pcm, sampleRate)
	resp, err := o.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: o.model,
	})
	if err != nil {
		return Result{}, fmt.Errorf("whisper transcription: %w", err)
	}

	// The API does not report a confidence for batch transcription.
	return Result{Text: resp.Text, Confidence: 1.0}, nil
}
