package session

import (
	"testing"
	"time"

	"rag-doc-assistant/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(ttl time.Duration) *Manager {
	return NewManager(NewMockBackend(), models.DefaultSettings(), ttl, time.Minute, zap.NewNop())
}

func TestManagerCreateAndGet(t *testing.T) {
	m := newTestManager(time.Hour)

	s, err := m.Create()
	require.NoError(t, err)
	_, err = uuid.Parse(s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultSettings(), s.Settings.Current())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)
	assert.Equal(t, 1, m.Count())
}

func TestManagerSessionsAreIndependent(t *testing.T) {
	m := newTestManager(time.Hour)
	a, err := m.Create()
	require.NoError(t, err)
	b, err := m.Create()
	require.NoError(t, err)

	_, err = a.Settings.SelectProvider(models.ProviderOllama)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, models.ProviderOpenAI, b.Settings.Current().Provider)
}

func TestManagerUnknownSession(t *testing.T) {
	m := newTestManager(time.Hour)

	_, err := m.Get("not-a-uuid")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = m.Get(uuid.NewString())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, m.Delete(uuid.NewString()), ErrSessionNotFound)
}

func TestManagerDelete(t *testing.T) {
	m := newTestManager(time.Hour)
	s, err := m.Create()
	require.NoError(t, err)

	require.NoError(t, m.Delete(s.ID))

	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, m.Count())
}

func TestManagerExpiry(t *testing.T) {
	m := newTestManager(200 * time.Millisecond)
	s, err := m.Create()
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)
	_, err = m.Get(s.ID)
	require.NoError(t, err, "Get within the ttl keeps the session")

	time.Sleep(120 * time.Millisecond)
	_, err = m.Get(s.ID)
	require.NoError(t, err, "idle timer restarted by the previous Get")

	time.Sleep(400 * time.Millisecond)
	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
