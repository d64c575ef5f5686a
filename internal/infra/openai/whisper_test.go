package openai_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-terminal/internal/infra/openai"
)

func TestWhisperClient_Transcribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "whisper-1", r.FormValue("model"))
		assert.Equal(t, "en", r.FormValue("language"))

		file, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(file)
			assert.Equal(t, "RIFF fake wav", string(data))
		}

		json.NewEncoder(w).Encode(map[string]string{"text": " turn on the lights \n"})
	}))
	defer server.Close()

	client := openai.NewWhisperClientWithURL("test-key", "en", server.URL)
	text, err := client.Transcribe(context.Background(), []byte("RIFF fake wav"))
	require.NoError(t, err)
	assert.Equal(t, "turn on the lights", text)
}

func TestWhisperClient_EmptyAudioSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	text, err := openai.NewWhisperClientWithURL("k", "en", server.URL).Transcribe(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Zero(t, calls.Load())
}

func TestWhisperClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid file", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := openai.NewWhisperClientWithURL("k", "en", server.URL).Transcribe(context.Background(), []byte("x"))
	assert.ErrorContains(t, err, "whisper API error 400")
	assert.Equal(t, int32(1), calls.Load())
}
