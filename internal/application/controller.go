package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"voice-terminal/internal/domain"
)

type Timing struct {
	BootDelay        time.Duration
	SettleDelay      time.Duration
	RearmDelay       time.Duration
	PlaceholderDelay time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		BootDelay:        2400 * time.Millisecond,
		SettleDelay:      300 * time.Millisecond,
		RearmDelay:       400 * time.Millisecond,
		PlaceholderDelay: 1600 * time.Millisecond,
	}
}

// Snapshot is a copy of the controller state after a transition.
type Snapshot struct {
	Phase      domain.Phase
	MicEnabled bool
	Failure    *domain.Failure
	Messages   []domain.Message

	Capturing bool
	Pending   bool
	Uttering  bool
}

// Controller sequences capture, reply requests and speech so that at most
// one of them is active at a time. All state is owned by the Run goroutine;
// the exported methods only enqueue events.
type Controller struct {
	recognizer Recognizer
	speaker    Speaker
	replies    ReplyClient
	timing     Timing
	logger     *slog.Logger

	events    chan event
	done      chan struct{}
	closeOnce sync.Once

	ctx        context.Context
	phase      domain.Phase
	micEnabled bool
	failure    *domain.Failure
	history    *History
	capture    *activation
	request    *activation
	speech     *activation
	timer      *activation
	lastID     uint64

	mu        sync.RWMutex
	snapshot  Snapshot
	listeners []func(Snapshot)
}

// activation is the handle of one side effect. Results carry the id they
// were started with and are dropped unless it is still current.
type activation struct {
	id     uint64
	cancel func()
}

type event any

type (
	startEvent  struct{}
	retryEvent  struct{}
	micEvent    struct{ enabled bool }
	submitEvent struct{ text string }
	timerEvent  struct {
		id   uint64
		kind timerKind
	}
	captureEvent struct {
		id   uint64
		text string
		err  error
	}
	replyEvent struct {
		id   uint64
		text string
		err  error
	}
	speechEvent struct{ id uint64 }
)

type timerKind int

const (
	timerBoot timerKind = iota
	timerArm
)

func NewController(
	recognizer Recognizer,
	speaker Speaker,
	replies ReplyClient,
	timing Timing,
	logger *slog.Logger,
) *Controller {
	c := &Controller{
		recognizer: recognizer,
		speaker:    speaker,
		replies:    replies,
		timing:     timing,
		logger:     logger,
		events:     make(chan event, 32),
		done:       make(chan struct{}),
		phase:      domain.PhaseLocked,
		micEnabled: true,
		history:    NewHistory(),
	}
	c.snapshot = c.buildSnapshot()
	return c
}

// Start leaves the locked phase and boots the voice loop. It is ignored
// unless the controller is locked.
func (c *Controller) Start() { c.post(startEvent{}) }

// Retry leaves the error phase. It is a no-op in any other phase.
func (c *Controller) Retry() { c.post(retryEvent{}) }

func (c *Controller) SetMicEnabled(enabled bool) { c.post(micEvent{enabled: enabled}) }

// SubmitText sends typed text as if it had been spoken.
func (c *Controller) SubmitText(text string) { c.post(submitEvent{text: text}) }

// Close aborts capture, the pending request and speech, and stops Run.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Subscribe registers fn to be called after every handled event. fn runs on
// the controller goroutine and must not block.
func (c *Controller) Subscribe(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case ev := <-c.events:
			c.handle(ev)
			c.publish()
		}
	}
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Controller) handle(ev event) {
	switch ev := ev.(type) {
	case startEvent:
		c.onStart()
	case retryEvent:
		c.onRetry()
	case micEvent:
		c.onMic(ev.enabled)
	case submitEvent:
		c.onSubmit(ev.text)
	case timerEvent:
		c.onTimer(ev)
	case captureEvent:
		c.onCapture(ev)
	case replyEvent:
		c.onReply(ev)
	case speechEvent:
		c.onSpeech(ev)
	}
}

func (c *Controller) onStart() {
	if c.phase != domain.PhaseLocked {
		c.logger.Debug("start ignored", "phase", c.phase)
		return
	}
	c.failure = nil
	c.setPhase(domain.PhaseBooting)
	c.schedule(timerBoot, c.timing.BootDelay)
}

func (c *Controller) onRetry() {
	if c.phase != domain.PhaseError {
		return
	}
	c.failure = nil
	c.rest()
}

func (c *Controller) onMic(enabled bool) {
	if c.micEnabled == enabled {
		return
	}
	c.micEnabled = enabled
	c.logger.Info("microphone toggled", "enabled", enabled, "phase", c.phase)

	if !enabled {
		c.abortCapture()
		if c.phase == domain.PhaseListening {
			c.stopTimer()
			c.setPhase(domain.PhaseIdle)
		}
		return
	}

	if c.phase == domain.PhaseIdle {
		c.listen()
	}
}

func (c *Controller) onSubmit(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if c.phase != domain.PhaseListening && c.phase != domain.PhaseIdle {
		c.logger.Debug("text submission ignored", "phase", c.phase)
		return
	}
	c.think(text)
}

func (c *Controller) onTimer(ev timerEvent) {
	if c.timer == nil || c.timer.id != ev.id {
		return
	}
	c.timer = nil

	switch ev.kind {
	case timerBoot:
		if c.phase == domain.PhaseBooting {
			c.rest()
		}
	case timerArm:
		if c.phase == domain.PhaseListening && c.capture == nil {
			c.startCapture()
		}
	}
}

func (c *Controller) onCapture(ev captureEvent) {
	if c.capture == nil || c.capture.id != ev.id {
		return
	}
	c.capture.cancel()
	c.capture = nil

	if ev.err != nil {
		c.failCapture(ev.err)
		return
	}

	text := strings.TrimSpace(ev.text)
	if text == "" {
		c.logger.Debug("no speech captured, re-arming", "delay", c.timing.RearmDelay)
		c.schedule(timerArm, c.timing.RearmDelay)
		return
	}

	c.logger.Info("transcribed", "text", text)
	c.think(text)
}

func (c *Controller) onReply(ev replyEvent) {
	if c.request == nil || c.request.id != ev.id {
		return
	}
	c.request.cancel()
	c.request = nil

	if ev.err != nil {
		c.fail(domain.FailureReply, "Connection problem", ev.err.Error())
		return
	}

	reply := strings.TrimSpace(ev.text)
	if reply == "" {
		c.fail(domain.FailureReply, "Connection problem", "the assistant returned an empty reply")
		return
	}

	c.speak(reply)
}

func (c *Controller) onSpeech(ev speechEvent) {
	if c.speech == nil || c.speech.id != ev.id {
		return
	}
	c.speech.cancel()
	c.speech = nil

	if c.phase == domain.PhaseSpeaking {
		c.rest()
	}
}

// rest ends a cycle in listening or idle depending on the mic flag.
func (c *Controller) rest() {
	if c.micEnabled {
		c.listen()
		return
	}
	c.setPhase(domain.PhaseIdle)
}

func (c *Controller) listen() {
	c.setPhase(domain.PhaseListening)
	c.schedule(timerArm, c.timing.SettleDelay)
}

func (c *Controller) startCapture() {
	if c.recognizer == nil {
		c.fail(domain.FailureUnsupported, "Speech capture unavailable", ErrCaptureUnsupported.Error())
		return
	}

	ctx, cancel := context.WithCancel(c.ctx)
	id := c.nextID()
	c.capture = &activation{id: id, cancel: cancel}

	rec := c.recognizer
	c.logger.Debug("capture armed", "source", rec.Name(), "activation", id)

	go func() {
		if err := rec.Ready(ctx); err != nil {
			c.post(captureEvent{id: id, err: err})
			return
		}
		text, err := rec.Listen(ctx)
		c.post(captureEvent{id: id, text: text, err: err})
	}()
}

func (c *Controller) think(text string) {
	c.abortCapture()
	c.stopTimer()
	c.cancelRequest()

	prior := c.history.Messages()
	c.history.Append(domain.RoleUser, text)
	c.setPhase(domain.PhaseThinking)

	ctx, cancel := context.WithCancel(c.ctx)
	id := c.nextID()
	c.request = &activation{id: id, cancel: cancel}

	replies := c.replies
	go func() {
		reply, err := replies.Reply(ctx, text, prior)
		c.post(replyEvent{id: id, text: reply, err: err})
	}()
}

func (c *Controller) speak(text string) {
	c.abortCapture()
	c.cancelSpeech()

	c.history.Append(domain.RoleAssistant, text)
	c.setPhase(domain.PhaseSpeaking)

	ctx, cancel := context.WithCancel(c.ctx)
	id := c.nextID()
	c.speech = &activation{id: id, cancel: cancel}

	speaker := c.speaker
	placeholder := c.timing.PlaceholderDelay
	logger := c.logger

	go func() {
		err := ErrSpeechUnsupported
		if speaker != nil {
			err = speaker.Speak(ctx, text)
		}

		switch {
		case errors.Is(err, ErrSpeechUnsupported):
			select {
			case <-ctx.Done():
			case <-time.After(placeholder):
			}
		case err != nil && ctx.Err() == nil:
			logger.Warn("speech output failed", "error", err)
		}

		c.post(speechEvent{id: id})
	}()
}

func (c *Controller) failCapture(err error) {
	switch {
	case errors.Is(err, ErrCaptureUnsupported):
		c.fail(domain.FailureUnsupported, "Speech capture unavailable", err.Error())
	case errors.Is(err, ErrPermissionDenied):
		c.fail(domain.FailurePermission, "Microphone access denied", err.Error())
	default:
		c.fail(domain.FailureCapture, "Could not capture speech", err.Error())
	}
}

func (c *Controller) fail(kind domain.FailureKind, title, detail string) {
	c.abortCapture()
	c.stopTimer()
	c.failure = &domain.Failure{Kind: kind, Title: title, Detail: detail}
	c.logger.Warn("voice loop failed", "kind", kind, "title", title, "detail", detail)
	c.setPhase(domain.PhaseError)
}

func (c *Controller) setPhase(p domain.Phase) {
	if c.phase == p {
		return
	}
	c.logger.Info("phase changed", "from", c.phase, "to", p)
	c.phase = p
}

func (c *Controller) schedule(kind timerKind, d time.Duration) {
	c.stopTimer()
	id := c.nextID()
	t := time.AfterFunc(d, func() {
		c.post(timerEvent{id: id, kind: kind})
	})
	c.timer = &activation{id: id, cancel: func() { t.Stop() }}
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.cancel()
		c.timer = nil
	}
}

func (c *Controller) abortCapture() {
	if c.capture != nil {
		c.logger.Debug("capture aborted", "activation", c.capture.id)
		c.capture.cancel()
		c.capture = nil
	}
}

func (c *Controller) cancelRequest() {
	if c.request != nil {
		c.request.cancel()
		c.request = nil
	}
}

func (c *Controller) cancelSpeech() {
	if c.speech != nil {
		c.speech.cancel()
		c.speech = nil
	}
}

func (c *Controller) nextID() uint64 {
	c.lastID++
	return c.lastID
}

func (c *Controller) shutdown() {
	c.Close()
	c.abortCapture()
	c.cancelRequest()
	c.cancelSpeech()
	c.stopTimer()
	if c.speaker != nil {
		c.speaker.Cancel()
	}
	c.publish()
}

func (c *Controller) buildSnapshot() Snapshot {
	snap := Snapshot{
		Phase:      c.phase,
		MicEnabled: c.micEnabled,
		Messages:   c.history.Messages(),
		Capturing:  c.capture != nil,
		Pending:    c.request != nil,
		Uttering:   c.speech != nil,
	}
	if c.failure != nil {
		f := *c.failure
		snap.Failure = &f
	}
	return snap
}

func (c *Controller) publish() {
	snap := c.buildSnapshot()

	c.mu.Lock()
	c.snapshot = snap
	listeners := c.listeners
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
