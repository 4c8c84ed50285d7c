package orchestrator

import (
	"context"
	"time"

	"github.com/mireles/aibridge/pkg/request"
)

// ImageRequest carries the inputs for image generation.
type ImageRequest struct {
	Prompt   string
	Model    string
	Provider string
	Style    string
	Size     string
	Quality  string
}

// GenerateImage creates an image from a text prompt. The model resolves
// through the image-model table; media responses bypass the cache.
func (o *Orchestrator) GenerateImage(ctx context.Context, ir ImageRequest) (*request.Response, error) {
	model, provider, err := o.registry.ResolveImageModel(ir.Model, ir.Provider)
	if err != nil {
		return nil, err
	}

	style := ir.Style
	if style == "" {
		style = "natural"
	}
	size := ir.Size
	if size == "" {
		size = "1024x1024"
	}
	quality := ir.Quality
	if quality == "" {
		quality = "standard"
	}

	req := &request.Request{
		Type:      request.TypeImageGeneration,
		Prompt:    ir.Prompt,
		Model:     model,
		Provider:  provider,
		Style:     style,
		Size:      size,
		Quality:   quality,
		Timestamp: time.Now(),
	}

	return o.dispatchMedia(ctx, req)
}

// TranscribeAudio converts speech to text. The transcript is in the
// response Text field.
func (o *Orchestrator) TranscribeAudio(ctx context.Context, audioPath string) (*request.Response, error) {
	req := &request.Request{
		Type:      request.TypeAudioTranscription,
		Model:     "whisper-1",
		Provider:  "openai",
		AudioPath: audioPath,
		Timestamp: time.Now(),
	}

	return o.dispatchMedia(ctx, req)
}

// SpeechRequest carries the inputs for text-to-speech synthesis.
type SpeechRequest struct {
	Text         string
	Voice        string
	Speed        float64
	OutputFormat string
}

// GenerateSpeech converts text to audio. The raw audio bytes are in the
// response Audio field.
func (o *Orchestrator) GenerateSpeech(ctx context.Context, sr SpeechRequest) (*request.Response, error) {
	format := sr.OutputFormat
	if format == "" {
		format = "mp3"
	}

	req := &request.Request{
		Type:         request.TypeTextToSpeech,
		Message:      sr.Text,
		Model:        "tts-1",
		Provider:     "openai",
		Voice:        sr.Voice,
		Speed:        sr.Speed,
		OutputFormat: format,
		Timestamp:    time.Now(),
	}

	return o.dispatchMedia(ctx, req)
}

// dispatchMedia runs the shared non-chat path: validate, budget check,
// dispatch, finalize, record usage. No cache tier.
func (o *Orchestrator) dispatchMedia(ctx context.Context, req *request.Request) (*request.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := o.checkBudget(ctx, req); err != nil {
		return nil, err
	}

	started := time.Now()
	resp, err := o.router.Dispatch(ctx, req)
	if err != nil {
		return nil, err
	}
	o.finalize(resp, req, started)
	o.recordUsage(ctx, resp, req.Kind())

	return resp, nil
}
