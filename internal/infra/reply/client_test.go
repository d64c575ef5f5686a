package reply_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voice-terminal/internal/domain"
	"voice-terminal/internal/infra/reply"
)

func TestClient_Reply(t *testing.T) {
	var got struct {
		Text     string           `json:"text"`
		Messages []domain.Message `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"reply": "Lights are on."})
	}))
	defer server.Close()

	history := []domain.Message{
		{ID: "m1", Role: domain.RoleUser, Content: "hi", Timestamp: time.Unix(1700000000, 0).UTC()},
		{ID: "m2", Role: domain.RoleAssistant, Content: "hello", Timestamp: time.Unix(1700000001, 0).UTC()},
	}

	client := reply.NewClient(server.URL, "secret", time.Second)
	text, err := client.Reply(context.Background(), "turn on the lights", history)
	require.NoError(t, err)
	assert.Equal(t, "Lights are on.", text)

	assert.Equal(t, "turn on the lights", got.Text)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, history[0].ID, got.Messages[0].ID)
	assert.Equal(t, domain.RoleAssistant, got.Messages[1].Role)
}

func TestClient_EmptyHistoryIsSentAsArray(t *testing.T) {
	var raw map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		json.NewEncoder(w).Encode(map[string]string{"reply": "ok"})
	}))
	defer server.Close()

	_, err := reply.NewClient(server.URL, "", time.Second).Reply(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(raw["messages"]))
}

func TestClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name: "empty reply",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"reply":"   "}`))
			},
		},
		{
			name: "missing reply",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"answer":"hi"}`))
			},
		},
		{
			name: "garbled body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"reply":`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			text, err := reply.NewClient(server.URL, "", time.Second).Reply(context.Background(), "hi", nil)
			assert.Error(t, err)
			assert.Empty(t, text)
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := reply.NewClient(url, "", time.Second).Reply(context.Background(), "hi", nil)
	assert.Error(t, err)
}

func TestClient_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reply.NewClient(server.URL, "", 5*time.Second).Reply(ctx, "hi", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
