// Package chat runs the question and answer loop of one session.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "rag-doc-assistant/internal/errors"
	"rag-doc-assistant/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrBlankQuestion is returned for a question that is empty after trimming.
	// Nothing about the conversation changes.
	ErrBlankQuestion = errors.New("question must not be blank")

	// ErrRequestInFlight is returned while an earlier question is unanswered.
	ErrRequestInFlight = errors.New("a question is already being answered")
)

// Asker answers one question. backend.Client satisfies it.
type Asker interface {
	Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error)
}

// SettingsSource provides the settings in effect when a question is sent.
type SettingsSource interface {
	Current() models.Settings
}

type Option func(*Controller)

// WithClock replaces time.Now for message timestamps and ids.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		c.log = logger.Named("chat")
	}
}

// Controller owns the conversation history and the request lifecycle.
//
// At most one question is outstanding. A question's user message is appended
// before the backend is called and is kept whatever the outcome. Clear
// abandons an outstanding question: its answer, when it arrives, is dropped.
type Controller struct {
	asker    Asker
	settings SettingsSource
	ids      *IDGenerator
	now      func() time.Time
	log      *zap.Logger

	mu         sync.Mutex
	messages   []models.Message
	loading    bool
	errMsg     string
	generation uint64 // bumped per turn and per Clear
	version    uint64 // bumped per observable transition

	subsMu  sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	notifyMu  sync.Mutex
	delivered uint64
}

func NewController(asker Asker, settings SettingsSource, opts ...Option) *Controller {
	c := &Controller{
		asker:    asker,
		settings: settings,
		now:      time.Now,
		log:      zap.NewNop(),
		messages: make([]models.Message, 0),
		subs:     make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ids = NewIDGenerator(c.now)
	return c
}

// Send runs one turn and blocks until it completes or is abandoned by Clear.
// Backend failures end up in the snapshot error, so the returned error is
// only ever ErrBlankQuestion or ErrRequestInFlight.
func (c *Controller) Send(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrBlankQuestion
	}

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrRequestInFlight
	}

	s := c.settings.Current()
	c.messages = append(c.messages, models.Message{
		ID:        c.ids.Next(),
		Role:      models.RoleUser,
		Content:   question,
		Timestamp: c.now(),
	})
	c.errMsg = ""
	c.loading = true
	c.generation++
	gen := c.generation
	version, snap := c.transitionLocked()
	c.mu.Unlock()
	c.publish(version, snap)

	resp, err := c.asker.Ask(ctx, models.AskRequest{
		Question:    question,
		Provider:    s.Provider,
		Model:       s.Model,
		Temperature: s.Temperature,
		TopK:        s.TopK,
	})

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.log.Debug("dropping answer for cleared conversation", zap.Uint64("generation", gen))
		return nil
	}

	c.loading = false
	if err != nil {
		c.errMsg = apperrors.UserMessage(err)
		c.log.Warn("question failed", zap.String("provider", s.Provider), zap.Error(err))
	} else {
		c.messages = append(c.messages, models.Message{
			ID:        c.ids.Next(),
			Role:      models.RoleAssistant,
			Content:   resp.Answer,
			Sources:   resp.Sources,
			ModelUsed: resp.ModelUsed,
			Timestamp: c.now(),
		})
		c.log.Debug("question answered",
			zap.String("model", resp.ModelUsed),
			zap.Int("sources", len(resp.Sources)))
	}
	version, snap = c.transitionLocked()
	c.mu.Unlock()
	c.publish(version, snap)
	return nil
}

// Clear empties the history and the error. It may be called at any time,
// including while a question is outstanding.
func (c *Controller) Clear() {
	c.mu.Lock()
	c.messages = make([]models.Message, 0)
	c.errMsg = ""
	c.loading = false
	c.generation++
	version, snap := c.transitionLocked()
	c.mu.Unlock()
	c.publish(version, snap)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every transition.
// Deliveries never overlap and never go back in time. fn must not call Send
// or Clear. Calling the returned function stops further deliveries.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subsMu.Lock()
			delete(c.subs, id)
			c.subsMu.Unlock()
		})
	}
}

func (c *Controller) transitionLocked() (uint64, Snapshot) {
	c.version++
	return c.version, c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	messages := make([]models.Message, len(c.messages))
	for i, m := range c.messages {
		messages[i] = m.Clone()
	}
	return Snapshot{
		State:    deriveState(c.loading, c.errMsg),
		Messages: messages,
		Loading:  c.loading,
		Error:    c.errMsg,
	}
}

// publish delivers snap unless a newer one already went out.
func (c *Controller) publish(version uint64, snap Snapshot) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	if version <= c.delivered {
		return
	}
	c.delivered = version

	c.subsMu.Lock()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subsMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
