package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/feed"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockSource is a feed.Source whose values are pushed by the test.
type mockSource[T any] struct {
	m     sync.RWMutex
	sinks map[string]feed.Sink[T]
	opens map[string]int
	stops map[string]int
}

func newMockSource[T any]() *mockSource[T] {
	return &mockSource[T]{
		sinks: make(map[string]feed.Sink[T]),
		opens: make(map[string]int),
		stops: make(map[string]int),
	}
}

func (m *mockSource[T]) Subscribe(_ context.Context, key string, sink feed.Sink[T]) (feed.Unsubscribe, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.sinks[key] = sink
	m.opens[key]++
	return func() {
		m.m.Lock()
		defer m.m.Unlock()
		m.stops[key]++
	}, nil
}

// push delivers to the sink captured for key, even after it was stopped,
// which is how a late remote delivery looks.
func (m *mockSource[T]) push(key string, v T) {
	m.m.RLock()
	sink, ok := m.sinks[key]
	m.m.RUnlock()
	if ok {
		sink.Deliver(v)
	}
}

func (m *mockSource[T]) stopCount(key string) int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.stops[key]
}

type fixture struct {
	principals *mockSource[string]
	profiles   *mockSource[*domain.Session]
	sync       *Sync
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		principals: newMockSource[string](),
		profiles:   newMockSource[*domain.Session](),
	}
	log := testLogger()
	f.sync = NewSync("client-1",
		feed.NewChannel[string]("principals", f.principals, log),
		feed.NewChannel[*domain.Session]("profiles", f.profiles, log),
		log)
	require.NoError(t, f.sync.Start(context.Background()))
	t.Cleanup(f.sync.Close)
	return f
}

type sessionRecorder struct {
	m      sync.RWMutex
	events []*domain.Session
}

func (r *sessionRecorder) record(s *domain.Session) {
	r.m.Lock()
	defer r.m.Unlock()
	r.events = append(r.events, s)
}

func (r *sessionRecorder) all() []*domain.Session {
	r.m.RLock()
	defer r.m.RUnlock()
	return append([]*domain.Session(nil), r.events...)
}

func TestSync_StartsSignedOut(t *testing.T) {
	f := setup(t)

	snap := f.sync.Current()
	assert.Equal(t, SignedOut, snap.State)
	assert.Empty(t, snap.PrincipalID)
	assert.Nil(t, snap.Session)
}

func TestSync_PrincipalThenProfileBecomesActive(t *testing.T) {
	f := setup(t)
	rec := &sessionRecorder{}
	defer f.sync.Subscribe(rec.record)()

	f.principals.push("client-1", "u1")
	assert.Equal(t, Resolving, f.sync.Current().State)

	f.profiles.push("u1", &domain.Session{ID: "u1", Name: "Ada", Role: domain.RoleFarmer})

	snap := f.sync.Current()
	assert.Equal(t, Active, snap.State)
	assert.Equal(t, "u1", snap.PrincipalID)
	require.NotNil(t, snap.Session)
	assert.Equal(t, "Ada", snap.Session.Name)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, "Ada", events[0].Name)
}

func TestSync_FastPrincipalSwapHasNoCrossTalk(t *testing.T) {
	f := setup(t)
	rec := &sessionRecorder{}
	defer f.sync.Subscribe(rec.record)()

	f.principals.push("client-1", "A")
	f.principals.push("client-1", "B")

	// A's profile arrives late, after the swap
	f.profiles.push("A", &domain.Session{ID: "A", Name: "Alice"})
	assert.Equal(t, Resolving, f.sync.Current().State)
	assert.Equal(t, 1, f.profiles.stopCount("A"))

	f.profiles.push("B", &domain.Session{ID: "B", Name: "Bola"})

	snap := f.sync.Current()
	assert.Equal(t, Active, snap.State)
	assert.Equal(t, "B", snap.PrincipalID)
	assert.Equal(t, "Bola", snap.Session.Name)

	for _, s := range rec.all() {
		if s != nil {
			assert.NotEqual(t, "A", s.ID)
		}
	}
}

func TestSync_MissingProfileIsSignedOut(t *testing.T) {
	f := setup(t)

	f.principals.push("client-1", "orphan")
	f.profiles.push("orphan", nil)

	snap := f.sync.Current()
	assert.Equal(t, SignedOut, snap.State)
	assert.Equal(t, "orphan", snap.PrincipalID)
	assert.Nil(t, snap.Session)

	// the profile appearing later activates the session
	f.profiles.push("orphan", &domain.Session{ID: "orphan", Name: "Late"})
	assert.Equal(t, Active, f.sync.Current().State)
}

func TestSync_SignOutClearsSession(t *testing.T) {
	f := setup(t)
	rec := &sessionRecorder{}
	defer f.sync.Subscribe(rec.record)()

	f.principals.push("client-1", "u1")
	f.profiles.push("u1", &domain.Session{ID: "u1", Name: "Ada"})
	f.principals.push("client-1", "")

	snap := f.sync.Current()
	assert.Equal(t, SignedOut, snap.State)
	assert.Nil(t, snap.Session)
	assert.Equal(t, 1, f.profiles.stopCount("u1"))

	events := rec.all()
	require.Len(t, events, 2)
	assert.NotNil(t, events[0])
	assert.Nil(t, events[1])
}

func TestSync_EmitsOnlyOnChange(t *testing.T) {
	f := setup(t)
	rec := &sessionRecorder{}
	defer f.sync.Subscribe(rec.record)()

	f.principals.push("client-1", "u1")
	profile := &domain.Session{ID: "u1", Name: "Ada", TotalProducts: 1}
	f.profiles.push("u1", profile)
	f.profiles.push("u1", &domain.Session{ID: "u1", Name: "Ada", TotalProducts: 1})
	f.profiles.push("u1", &domain.Session{ID: "u1", Name: "Ada", TotalProducts: 2})

	events := rec.all()
	require.Len(t, events, 2)
	assert.Equal(t, 2, events[1].TotalProducts)
}

func TestSync_SnapshotIsACopy(t *testing.T) {
	f := setup(t)
	f.principals.push("client-1", "u1")
	f.profiles.push("u1", &domain.Session{ID: "u1", Name: "Ada"})

	snap := f.sync.Current()
	snap.Session.Name = "mutated"
	assert.Equal(t, "Ada", f.sync.Current().Session.Name)
}

func TestSync_CloseStopsFeeds(t *testing.T) {
	f := setup(t)
	rec := &sessionRecorder{}
	f.sync.Subscribe(rec.record)

	f.principals.push("client-1", "u1")
	f.sync.Close()
	f.sync.Close()

	assert.Equal(t, 1, f.principals.stopCount("client-1"))
	assert.Equal(t, 1, f.profiles.stopCount("u1"))

	f.profiles.push("u1", &domain.Session{ID: "u1", Name: "Ada"})
	assert.Empty(t, rec.all())
}

func TestSync_ConcurrentDeliveries(t *testing.T) {
	f := setup(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.profiles.push("u1", &domain.Session{ID: "u1", Name: "Ada"})
		}()
	}
	f.principals.push("client-1", "u1")
	wg.Wait()
	f.profiles.push("u1", &domain.Session{ID: "u1", Name: "Ada"})

	require.Eventually(t, func() bool {
		return f.sync.Current().State == Active
	}, time.Second, 10*time.Millisecond)
}

func TestSync_LogsStateOfEachPrincipalChange(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	principals := newMockSource[string]()
	profiles := newMockSource[*domain.Session]()
	s := NewSync("client-1",
		feed.NewChannel[string]("principals", principals, log),
		feed.NewChannel[*domain.Session]("profiles", profiles, log),
		log)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)

	principals.push("client-1", "u1")
	profiles.push("u1", &domain.Session{ID: "u1", Role: domain.RoleHousehold})
	require.Equal(t, Active, s.Current().State)
	principals.push("client-1", "")

	var states []interface{}
	for _, e := range hook.AllEntries() {
		if e.Message == "principal changed" {
			states = append(states, e.Data["state"])
		}
	}
	assert.Equal(t, []interface{}{Resolving, SignedOut}, states)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "signed_out", SignedOut.String())
	assert.Equal(t, "resolving", Resolving.String())
	assert.Equal(t, "active", Active.String())
	assert.Equal(t, "unknown", State(42).String())
}
