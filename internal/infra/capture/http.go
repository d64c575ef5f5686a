package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

var ErrSourceNotRunning = errors.New("http capture server is not running")

// HTTPSource accepts utterances pushed over HTTP. Submissions are only
// accepted while an activation is listening; otherwise the assistant is
// busy and the request is rejected with 409.
type HTTPSource struct {
	addr        string
	server      *http.Server
	utterances  chan Utterance
	logger      *slog.Logger
	mu          sync.Mutex
	running     bool
	armed       bool
	mux         *http.ServeMux
	rateLimiter *RateLimiter
	authToken   string
}

func NewHTTPSource(addr string, authToken string, logger *slog.Logger) *HTTPSource {
	h := &HTTPSource{
		addr:        addr,
		utterances:  make(chan Utterance, 1),
		logger:      logger,
		mux:         http.NewServeMux(),
		rateLimiter: NewRateLimiter(30, time.Minute), // 30 requests per minute per IP
		authToken:   authToken,
	}
	h.mux.HandleFunc("POST /audio", h.rateLimiter.Middleware(h.authorize(h.handleAudio)))
	h.mux.HandleFunc("POST /text", h.rateLimiter.Middleware(h.authorize(h.handleText)))
	h.mux.HandleFunc("GET /health", h.handleHealth)
	return h
}

func (h *HTTPSource) Name() string {
	return "http"
}

// Start runs the intake server until Stop. It is independent of
// activations.
func (h *HTTPSource) Start(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return nil
	}

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      h.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		h.logger.Info("HTTP capture server starting", "addr", h.addr)
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", "error", err)
		}
	}()

	h.running = true
	return nil
}

func (h *HTTPSource) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return nil
	}

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.server.Shutdown(ctx); err != nil {
			h.logger.Warn("graceful shutdown failed, forcing close", "error", err)
			if err := h.server.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
	}

	h.running = false
	return nil
}

func (h *HTTPSource) Open(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.running {
		return ErrSourceNotRunning
	}

	// Drop anything left over from an aborted activation.
	select {
	case stale := <-h.utterances:
		h.logger.Debug("dropping utterance from aborted activation",
			"text_len", len(stale.Text),
			"audio_bytes", len(stale.Audio),
		)
	default:
	}

	h.armed = true
	return nil
}

func (h *HTTPSource) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.armed = false
	return nil
}

func (h *HTTPSource) Next(ctx context.Context) (Utterance, error) {
	select {
	case <-ctx.Done():
		return Utterance{}, ctx.Err()
	case utt := <-h.utterances:
		return utt, nil
	}
}

func (h *HTTPSource) Handler() http.Handler {
	return h.mux
}

// Inject delivers an utterance as if it had been posted. It reports false
// when no activation is listening.
func (h *HTTPSource) Inject(utt Utterance) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.armed {
		return false
	}

	select {
	case h.utterances <- utt:
		h.armed = false
		return true
	default:
		return false
	}
}

func (h *HTTPSource) authorize(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.authToken != "" {
			token := r.Header.Get("X-Auth-Token")
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token != h.authToken {
				h.logger.Warn("unauthorized capture request", "remote_addr", r.RemoteAddr)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (h *HTTPSource) handleAudio(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 10*1024*1024))
	if err != nil {
		h.logger.Error("reading audio body", "error", err)
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	if len(data) == 0 {
		http.Error(w, "empty audio", http.StatusBadRequest)
		return
	}

	if !h.Inject(Utterance{Audio: data}) {
		http.Error(w, "assistant is busy, try again", http.StatusConflict)
		return
	}

	h.logger.Info("received audio via HTTP", "bytes", len(data))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, `{"status":"received","bytes":%d}`, len(data))
}

func (h *HTTPSource) handleText(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	text := strings.TrimSpace(string(data))
	if text == "" {
		http.Error(w, "empty text", http.StatusBadRequest)
		return
	}

	if !h.Inject(Utterance{Text: text}) {
		http.Error(w, "assistant is busy, try again", http.StatusConflict)
		return
	}

	h.logger.Info("received text via HTTP", "text", text)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	fmt.Fprint(w, `{"status":"received"}`)
}

func (h *HTTPSource) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	running := h.running
	armed := h.armed
	h.mu.Unlock()

	status := "ok"
	statusCode := http.StatusOK

	if !running {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	fmt.Fprintf(w, `{"status":"%s","running":%t,"listening":%t}`, status, running, armed)
}
