package chat

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	apperrors "rag-doc-assistant/internal/errors"
	"rag-doc-assistant/internal/models"
	"rag-doc-assistant/internal/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockAsker records requests and answers with a canned response. When gated,
// Ask blocks until Release is called.
type MockAsker struct {
	mu         sync.Mutex
	requests   []models.AskRequest
	response   *models.AskResponse
	err        error
	gate       chan struct{}
	started    chan struct{}
	shouldFail bool
}

func NewMockAsker() *MockAsker {
	section := "2.1 Scope"
	return &MockAsker{
		response: &models.AskResponse{
			Answer: "The policy covers all employees.",
			Sources: []models.SourceReference{
				{ChunkText: "This policy applies to...", Source: "policy.docx", Section: &section, Score: 0.88, ChunkIndex: 3},
			},
			ModelUsed: "gpt-4o-mini",
		},
		started: make(chan struct{}, 10),
	}
}

func (m *MockAsker) SetShouldFail(fail bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shouldFail = fail
	m.err = err
}

// Gate makes subsequent calls block until Release.
func (m *MockAsker) Gate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

func (m *MockAsker) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

func (m *MockAsker) Ask(ctx context.Context, req models.AskRequest) (*models.AskResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	gate := m.gate
	fail, err := m.shouldFail, m.err
	resp := m.response
	m.mu.Unlock()

	m.started <- struct{}{}
	if gate != nil {
		<-gate
	}
	if fail {
		return nil, err
	}
	return resp, nil
}

func (m *MockAsker) Requests() []models.AskRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.AskRequest(nil), m.requests...)
}

func newTestController(t *testing.T) (*Controller, *MockAsker, *settings.Store) {
	t.Helper()
	store, err := settings.NewStore(models.DefaultSettings())
	require.NoError(t, err)
	asker := NewMockAsker()
	return NewController(asker, store), asker, store
}

func waitStarted(t *testing.T, asker *MockAsker) {
	t.Helper()
	select {
	case <-asker.started:
	case <-time.After(2 * time.Second):
		t.Fatal("backend was not called")
	}
}

func TestSendSuccess(t *testing.T) {
	c, asker, _ := newTestController(t)

	require.NoError(t, c.Send(context.Background(), "  Who is covered?  "))

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, models.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, "Who is covered?", snap.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, snap.Messages[1].Role)
	assert.Equal(t, asker.response.Answer, snap.Messages[1].Content)
	assert.Equal(t, asker.response.Sources, snap.Messages[1].Sources)
	assert.Equal(t, "gpt-4o-mini", snap.Messages[1].ModelUsed)
	assert.Equal(t, Idle, snap.State)
	assert.False(t, snap.Loading)
	assert.Empty(t, snap.Error)

	reqs := asker.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Who is covered?", reqs[0].Question)
}

func TestSendFailureKeepsUserMessage(t *testing.T) {
	c, asker, _ := newTestController(t)
	asker.SetShouldFail(true, apperrors.ErrChatFailed.WithDetail("No documents uploaded yet"))

	require.NoError(t, c.Send(context.Background(), "Anything?"))

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, models.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, IdleWithError, snap.State)
	assert.Equal(t, "No documents uploaded yet", snap.Error)
	assert.False(t, snap.Loading)
}

func TestSendFailureWithoutMessageUsesGeneric(t *testing.T) {
	c, asker, _ := newTestController(t)
	asker.SetShouldFail(true, errors.New("socket closed"))

	require.NoError(t, c.Send(context.Background(), "Anything?"))

	assert.Equal(t, apperrors.GenericMessage, c.Snapshot().Error)
}

func TestBlankQuestionChangesNothing(t *testing.T) {
	c, asker, _ := newTestController(t)
	asker.SetShouldFail(true, apperrors.ErrChatFailed)
	require.NoError(t, c.Send(context.Background(), "first"))
	before := c.Snapshot()

	notified := 0
	unsubscribe := c.Subscribe(func(Snapshot) { notified++ })
	defer unsubscribe()

	for _, q := range []string{"", "   ", "\n\t"} {
		assert.ErrorIs(t, c.Send(context.Background(), q), ErrBlankQuestion)
	}

	assert.Equal(t, before, c.Snapshot())
	assert.Len(t, asker.Requests(), 1)
	assert.Zero(t, notified)
}

func TestNewSendClearsError(t *testing.T) {
	c, asker, _ := newTestController(t)
	asker.SetShouldFail(true, apperrors.ErrChatFailed)
	require.NoError(t, c.Send(context.Background(), "first"))
	require.Equal(t, IdleWithError, c.Snapshot().State)

	asker.SetShouldFail(false, nil)
	asker.Gate()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Send(context.Background(), "second")
	}()
	waitStarted(t, asker) // first call
	waitStarted(t, asker)

	snap := c.Snapshot()
	assert.Equal(t, AwaitingResponse, snap.State)
	assert.Empty(t, snap.Error)
	assert.True(t, snap.Loading)

	asker.Release()
	<-done
	assert.Equal(t, Idle, c.Snapshot().State)
	assert.Len(t, c.Snapshot().Messages, 3)
}

func TestSecondSendWhileInFlight(t *testing.T) {
	c, asker, _ := newTestController(t)
	asker.Gate()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Send(context.Background(), "first")
	}()
	waitStarted(t, asker)

	assert.ErrorIs(t, c.Send(context.Background(), "second"), ErrRequestInFlight)

	asker.Release()
	<-done

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "first", snap.Messages[0].Content)
	assert.Len(t, asker.Requests(), 1)
}

func TestClearDropsLateAnswer(t *testing.T) {
	c, asker, _ := newTestController(t)
	asker.Gate()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Send(context.Background(), "abandoned")
	}()
	waitStarted(t, asker)

	c.Clear()
	snap := c.Snapshot()
	assert.Empty(t, snap.Messages)
	assert.False(t, snap.Loading)
	assert.Equal(t, Idle, snap.State)

	asker.Release()
	<-done

	snap = c.Snapshot()
	assert.Empty(t, snap.Messages, "late answer must not reappear")
	assert.Equal(t, Idle, snap.State)
}

func TestClearDropsLateFailure(t *testing.T) {
	c, asker, _ := newTestController(t)
	asker.SetShouldFail(true, apperrors.ErrChatFailed)
	asker.Gate()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Send(context.Background(), "abandoned")
	}()
	waitStarted(t, asker)
	c.Clear()
	asker.Release()
	<-done

	assert.Empty(t, c.Snapshot().Error)
}

func TestSendAfterClearMidFlight(t *testing.T) {
	c, asker, _ := newTestController(t)
	asker.Gate()

	first := make(chan struct{})
	go func() {
		defer close(first)
		_ = c.Send(context.Background(), "abandoned")
	}()
	waitStarted(t, asker)
	c.Clear()

	asker.Release()
	<-first
	require.NoError(t, c.Send(context.Background(), "fresh"))

	snap := c.Snapshot()
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "fresh", snap.Messages[0].Content)
}

func TestClearIsIdempotent(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.Send(context.Background(), "q"))

	c.Clear()
	first := c.Snapshot()
	c.Clear()

	assert.Equal(t, first, c.Snapshot())
	assert.Empty(t, first.Messages)
}

func TestSettingsCapturedAtSendTime(t *testing.T) {
	c, asker, store := newTestController(t)
	asker.Gate()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = c.Send(context.Background(), "q")
	}()
	waitStarted(t, asker)

	next := models.DefaultSettings().WithProvider(models.ProviderOllama)
	next.TopK = 12
	_, err := store.Replace(next)
	require.NoError(t, err)

	asker.Release()
	<-done

	req := asker.Requests()[0]
	assert.Equal(t, models.ProviderOpenAI, req.Provider)
	assert.Equal(t, 5, req.TopK)
	assert.Equal(t, 0.3, req.Temperature)
	assert.Empty(t, req.Model)
}

func TestRequestCarriesCurrentSettings(t *testing.T) {
	c, asker, store := newTestController(t)
	next := models.Settings{
		Provider:     models.ProviderOllama,
		Model:        "llama3",
		Temperature:  0.9,
		TopK:         15,
		ChunkSize:    500,
		ChunkOverlap: 50,
	}
	_, err := store.Replace(next)
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), "q"))

	assert.Equal(t, models.AskRequest{
		Question:    "q",
		Provider:    models.ProviderOllama,
		Model:       "llama3",
		Temperature: 0.9,
		TopK:        15,
	}, asker.Requests()[0])
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	c, _, _ := newTestController(t)

	var got []Snapshot
	unsubscribe := c.Subscribe(func(s Snapshot) { got = append(got, s) })

	require.NoError(t, c.Send(context.Background(), "q"))

	require.Len(t, got, 2)
	assert.Equal(t, AwaitingResponse, got[0].State)
	assert.Len(t, got[0].Messages, 1)
	assert.Equal(t, Idle, got[1].State)
	assert.Len(t, got[1].Messages, 2)

	unsubscribe()
	unsubscribe()
	c.Clear()
	assert.Len(t, got, 2)
}

func TestSnapshotIsACopy(t *testing.T) {
	c, _, _ := newTestController(t)
	require.NoError(t, c.Send(context.Background(), "q"))

	snap := c.Snapshot()
	snap.Messages[0].Content = "changed"
	*snap.Messages[1].Sources[0].Section = "changed"
	snap.Messages = snap.Messages[:0]

	again := c.Snapshot()
	require.Len(t, again.Messages, 2)
	assert.Equal(t, "q", again.Messages[0].Content)
	assert.Equal(t, "2.1 Scope", *again.Messages[1].Sources[0].Section)
}

func TestMessagesUseClockAndUniqueIDs(t *testing.T) {
	store, err := settings.NewStore(models.DefaultSettings())
	require.NoError(t, err)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewController(NewMockAsker(), store, WithClock(func() time.Time { return fixed }))

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Send(context.Background(), "q"))
	}

	pattern := regexp.MustCompile(`^msg-\d+-[0-9A-HJKMNP-TV-Z]{26}$`)
	seen := make(map[string]bool)
	for _, m := range c.Snapshot().Messages {
		assert.Equal(t, fixed, m.Timestamp)
		assert.Regexp(t, pattern, m.ID)
		assert.False(t, seen[m.ID], "duplicate id %s", m.ID)
		seen[m.ID] = true
	}
	assert.Len(t, seen, 6)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "awaiting_response", AwaitingResponse.String())
	assert.Equal(t, "idle_with_error", IdleWithError.String())

	text, err := IdleWithError.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "idle_with_error", string(text))
}

func TestLastMessage(t *testing.T) {
	_, ok := Snapshot{}.LastMessage()
	assert.False(t, ok)

	c, _, _ := newTestController(t)
	require.NoError(t, c.Send(context.Background(), "q"))
	last, ok := c.Snapshot().LastMessage()
	require.True(t, ok)
	assert.Equal(t, models.RoleAssistant, last.Role)
}
