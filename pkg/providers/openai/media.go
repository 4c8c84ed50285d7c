package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/mireles/aibridge/pkg/request"
)

const (
	imagesPath         = "/v1/images/generations"
	transcriptionsPath = "/v1/audio/transcriptions"
	speechPath         = "/v1/audio/speech"

	transcriptionModel = "whisper-1"
	speechModel        = "tts-1"
)

type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	Quality        string `json:"quality,omitempty"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
}

// GenerateImage creates an image from the request prompt.
func (a *Adapter) GenerateImage(ctx context.Context, req *request.Request) (*request.Response, error) {
	model := req.Model
	if model == "" || strings.Contains(model, "gpt-image") {
		model = "dall-e-3"
	}

	size := req.Size
	if size == "" {
		size = "1024x1024"
	}
	quality := req.Quality
	if quality == "" {
		quality = "standard"
	}

	payload := imageRequest{
		Model:          model,
		Prompt:         req.Prompt,
		Size:           size,
		Quality:        quality,
		N:              1,
		ResponseFormat: "b64_json",
	}

	var resp imageResponse
	if err := a.PostJSON(ctx, imagesPath, payload, &resp); err != nil {
		return nil, fmt.Errorf("openai: generate image: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai: no image in response")
	}

	image := request.Image{URL: resp.Data[0].URL, Format: "png"}
	if resp.Data[0].B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
		if err != nil {
			return nil, fmt.Errorf("openai: decode image payload: %w", err)
		}
		image.Data = data
		image.URL = ""
	}

	return &request.Response{
		Text:     "Generated image: " + req.Prompt,
		Model:    model,
		Provider: a.Provider(),
		Images:   []request.Image{image},
		Cost:     imageCost(model, size, quality),
	}, nil
}

// imageCost follows DALL-E list pricing; unknown models fall back to the
// dall-e-2 flat rate.
func imageCost(model, size, quality string) float64 {
	if model == "dall-e-3" {
		if quality == "hd" {
			if size == "1024x1024" {
				return 0.08
			}
			return 0.12
		}
		return 0.04
	}
	return 0.02
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// TranscribeAudio transcribes an audio file with Whisper.
func (a *Adapter) TranscribeAudio(ctx context.Context, req *request.Request) (*request.Response, error) {
	audio, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("openai: open audio: %w", err)
	}
	defer func() { _ = audio.Close() }()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	part, err := form.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, fmt.Errorf("openai: build form: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("openai: read audio: %w", err)
	}
	_ = form.WriteField("model", transcriptionModel)
	_ = form.WriteField("response_format", "json")
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("openai: finish form: %w", err)
	}

	httpReq, err := a.NewRequest(ctx, http.MethodPost, transcriptionsPath, &buf)
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	httpResp, err := a.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: transcribe: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read transcription: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai: transcribe: unexpected status %d: %s", httpResp.StatusCode, body)
	}

	var resp transcriptionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("openai: decode transcription: %w", err)
	}

	return &request.Response{
		Text:     resp.Text,
		Model:    transcriptionModel,
		Provider: a.Provider(),
		Cost:     transcriptionCost(req.AudioPath),
	}, nil
}

// transcriptionCost estimates the Whisper cost ($0.006/minute) from file
// size. It is a rough duration proxy, matching how estimates are billed
// elsewhere in the module.
func transcriptionCost(audioPath string) float64 {
	info, err := os.Stat(audioPath)
	if err != nil {
		return 0
	}
	estimatedMinutes := float64(info.Size()) / (1024 * 1024)
	return estimatedMinutes * 0.006
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

// GenerateSpeech synthesizes speech for the request text. The response body
// is raw audio in the requested output format.
func (a *Adapter) GenerateSpeech(ctx context.Context, req *request.Request) (*request.Response, error) {
	voice := req.Voice
	if voice == "" {
		voice = "alloy"
	}
	format := req.OutputFormat
	if format == "" {
		format = "mp3"
	}

	payload := speechRequest{
		Model:          speechModel,
		Input:          req.Message,
		Voice:          voice,
		ResponseFormat: format,
		Speed:          req.Speed,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal speech request: %w", err)
	}

	httpReq, err := a.NewRequest(ctx, http.MethodPost, speechPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := a.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: speech: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	audio, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read speech: %w", err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai: speech: unexpected status %d: %s", httpResp.StatusCode, audio)
	}

	preview := req.Message
	if len(preview) > 50 {
		preview = preview[:50] + "..."
	}

	return &request.Response{
		Text:        "Generated speech for: " + preview,
		Model:       speechModel,
		Provider:    a.Provider(),
		Audio:       audio,
		AudioFormat: format,
		Cost:        float64(len(req.Message)) / 1e6 * 15.0, // $15 per 1M characters.
	}, nil
}
