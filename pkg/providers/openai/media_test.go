package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mireles/aibridge/pkg/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateImage(t *testing.T) {
	pngBytes := []byte{0x89, 'P', 'N', 'G'}
	var got imageRequest
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, imagesPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data": [{"b64_json": "` + base64.StdEncoding.EncodeToString(pngBytes) + `"}]}`))
	})

	resp, err := a.GenerateImage(context.Background(), &request.Request{Prompt: "a lighthouse"})
	require.NoError(t, err)

	assert.Equal(t, "dall-e-3", got.Model)
	assert.Equal(t, "1024x1024", got.Size)
	assert.Equal(t, "standard", got.Quality)
	assert.Equal(t, 1, got.N)
	assert.Equal(t, "b64_json", got.ResponseFormat)

	require.Len(t, resp.Images, 1)
	assert.Equal(t, pngBytes, resp.Images[0].Data)
	assert.Empty(t, resp.Images[0].URL)
	assert.Equal(t, "png", resp.Images[0].Format)
	assert.InDelta(t, 0.04, resp.Cost, 1e-9)
}

func TestImageCost(t *testing.T) {
	cases := []struct {
		model, size, quality string
		want                 float64
	}{
		{"dall-e-3", "1024x1024", "hd", 0.08},
		{"dall-e-3", "1792x1024", "hd", 0.12},
		{"dall-e-3", "1024x1024", "standard", 0.04},
		{"dall-e-2", "1024x1024", "standard", 0.02},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, imageCost(c.model, c.size, c.quality), 1e-9)
	}
}

func TestTranscribeAudio(t *testing.T) {
	audioPath := filepath.Join(t.TempDir(), "memo.mp3")
	require.NoError(t, os.WriteFile(audioPath, []byte("fake mp3 bytes"), 0o644))

	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, transcriptionsPath, r.URL.Path)

		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, transcriptionModel, r.FormValue("model"))
		assert.Equal(t, "json", r.FormValue("response_format"))
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "memo.mp3", header.Filename)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text": "hello world"}`))
	})

	resp, err := a.TranscribeAudio(context.Background(), &request.Request{AudioPath: audioPath})
	require.NoError(t, err)

	assert.Equal(t, "hello world", resp.Text)
	assert.Equal(t, transcriptionModel, resp.Model)
	assert.Greater(t, resp.Cost, 0.0)
}

func TestTranscribeAudioMissingFile(t *testing.T) {
	a := New("sk-test", nil)

	_, err := a.TranscribeAudio(context.Background(), &request.Request{AudioPath: "/no/such/file.mp3"})
	assert.ErrorContains(t, err, "open audio")
}

func TestGenerateSpeech(t *testing.T) {
	var got speechRequest
	a := testAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, speechPath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("raw mp3 audio"))
	})

	resp, err := a.GenerateSpeech(context.Background(), &request.Request{Message: "Read this aloud"})
	require.NoError(t, err)

	assert.Equal(t, speechModel, got.Model)
	assert.Equal(t, "Read this aloud", got.Input)
	assert.Equal(t, "alloy", got.Voice)
	assert.Equal(t, "mp3", got.ResponseFormat)

	assert.Equal(t, []byte("raw mp3 audio"), resp.Audio)
	assert.Equal(t, "mp3", resp.AudioFormat)
	assert.InDelta(t, float64(len("Read this aloud"))/1e6*15.0, resp.Cost, 1e-12)
}

func TestGenerateSpeechLongTextPreview(t *testing.T) {
	long := strings.Repeat("a", 80)
	a := testAdapter(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("audio"))
	})

	resp, err := a.GenerateSpeech(context.Background(), &request.Request{Message: long})
	require.NoError(t, err)

	assert.Equal(t, "Generated speech for: "+long[:50]+"...", resp.Text)
}
