package catalog

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/feed"
	"github.com/fjod/agromarket/internal/remote"
	"github.com/fjod/agromarket/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	m     sync.RWMutex
	sinks map[string]feed.Sink[[]domain.ProductRecord]
}

func (s *mockSource) Subscribe(_ context.Context, key string, sink feed.Sink[[]domain.ProductRecord]) (feed.Unsubscribe, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.sinks == nil {
		s.sinks = make(map[string]feed.Sink[[]domain.ProductRecord])
	}
	s.sinks[key] = sink
	return func() {}, nil
}

func (s *mockSource) push(key string, records ...domain.ProductRecord) {
	s.m.RLock()
	sink := s.sinks[key]
	s.m.RUnlock()
	sink.Deliver(records)
}

func (s *mockSource) fail(key string, err error) {
	s.m.RLock()
	sink := s.sinks[key]
	s.m.RUnlock()
	sink.Fail(err)
}

func testLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func startSync(t *testing.T, src *mockSource, opts Options) *Sync {
	t.Helper()
	ch := feed.NewChannel[[]domain.ProductRecord]("products", src, testLogger())
	s := NewSync(ch, opts, Defaults{Rating: 0.1}, testLogger())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Close)
	return s
}

func TestSync_DropsUnverifiedRecords(t *testing.T) {
	src := &mockSource{}
	s := startSync(t, src, Options{PublishedOnly: true})

	src.push("",
		domain.ProductRecord{ID: "p1", Name: "Yam", Verified: false},
		domain.ProductRecord{ID: "p2", Name: "Tomato", Verified: true},
	)

	got := s.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "Tomato", got[0].Name)

	_, ok := s.Lookup("p1")
	assert.False(t, ok)
	p, ok := s.Lookup("p2")
	require.True(t, ok)
	assert.Equal(t, "Tomato", p.Name)
}

func TestSync_OwnerScopeKeepsUnverified(t *testing.T) {
	src := &mockSource{}
	s := startSync(t, src, Options{Key: "f1"})

	src.push("f1",
		domain.ProductRecord{ID: "p1", Name: "Yam", OwnerID: "f1"},
		domain.ProductRecord{ID: "p2", Name: "Okra", OwnerID: "f1", Verified: true},
	)

	assert.Len(t, s.Snapshot(), 2)
}

func TestSync_ReadyClosedOnFirstSnapshot(t *testing.T) {
	src := &mockSource{}
	s := startSync(t, src, Options{PublishedOnly: true})

	select {
	case <-s.Ready():
		t.Fatal("ready before first snapshot")
	default:
	}

	src.push("")
	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("ready not closed")
	}
	assert.Empty(t, s.Snapshot())
}

func TestSync_ErrorKeepsLastSnapshot(t *testing.T) {
	src := &mockSource{}
	s := startSync(t, src, Options{PublishedOnly: true})

	src.push("", domain.ProductRecord{ID: "p1", Name: "Tomato", Verified: true})
	src.fail("", errors.New("permission denied"))

	assert.EqualError(t, s.Err(), "permission denied")
	assert.Len(t, s.Snapshot(), 1)

	src.push("", domain.ProductRecord{ID: "p1", Name: "Tomato", Verified: true})
	assert.NoError(t, s.Err())
}

func TestSync_SubscribersGetReplacementLists(t *testing.T) {
	src := &mockSource{}
	s := startSync(t, src, Options{PublishedOnly: true})

	var (
		m     sync.Mutex
		lists [][]domain.Product
	)
	cancel := s.Subscribe(func(p []domain.Product) {
		m.Lock()
		defer m.Unlock()
		lists = append(lists, p)
	})

	src.push("", domain.ProductRecord{ID: "p1", Verified: true})
	src.push("",
		domain.ProductRecord{ID: "p1", Verified: true},
		domain.ProductRecord{ID: "p2", Verified: true},
	)
	cancel()
	src.push("")

	m.Lock()
	defer m.Unlock()
	require.Len(t, lists, 2)
	assert.Len(t, lists[0], 1)
	assert.Len(t, lists[1], 2)
}

func TestSync_SnapshotIsACopy(t *testing.T) {
	src := &mockSource{}
	s := startSync(t, src, Options{PublishedOnly: true})
	src.push("", domain.ProductRecord{ID: "p1", Name: "Tomato", Verified: true})

	snap := s.Snapshot()
	snap[0].Name = "changed"
	assert.Equal(t, "Tomato", s.Snapshot()[0].Name)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		rec  domain.ProductRecord
		want domain.Product
	}{
		{
			name: "missing fields get defaults",
			rec:  domain.ProductRecord{ID: "p1", Name: "Tomato", Verified: true},
			want: domain.Product{
				ID:        "p1",
				Name:      "Tomato",
				OwnerName: UnknownOwner,
				Location:  UnknownLocation,
				Category:  domain.CategoryOther,
				Rating:    0.1,
				Verified:  true,
			},
		},
		{
			name: "present fields are kept",
			rec: domain.ProductRecord{
				ID: "p2", Name: "Yam", Price: 1200, Unit: "tuber", OwnerID: "f1",
				OwnerName: "Green Acres", Location: "Oyo", Category: "Tubers",
				QuantityAvailable: 40, Rating: 4.5,
			},
			want: domain.Product{
				ID: "p2", Name: "Yam", Price: 1200, Unit: "tuber", OwnerID: "f1",
				OwnerName: "Green Acres", Location: "Oyo", Category: "Tubers",
				QuantityAvailable: 40, Rating: 4.5,
			},
		},
		{
			name: "negative numbers clamp to zero",
			rec:  domain.ProductRecord{ID: "p3", Price: -1, QuantityAvailable: -3, Rating: 2, OwnerName: "x", Location: "y", Category: "Fruits"},
			want: domain.Product{ID: "p3", Rating: 2, OwnerName: "x", Location: "y", Category: "Fruits"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.rec, Defaults{Rating: 0.1}))
		})
	}
}

func setupStore(t *testing.T) (*remote.Store, *repository.MemoryRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := repository.NewMemoryRepository()
	return remote.NewStore(repo, remote.NewNotifier(client), testLogger()), repo
}

func TestListing_AddProduct(t *testing.T) {
	store, repo := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Write(ctx, remote.Profiles, "f1", map[string]interface{}{
		"name":          "Ada",
		"role":          string(domain.RoleFarmer),
		"farmName":      "Green Acres",
		"rating":        0.5,
		"totalProducts": 0,
	}))
	owner := &domain.Session{ID: "f1", Name: "Ada", Role: domain.RoleFarmer, FarmName: "Green Acres", Rating: 0.5}

	listing := NewListing(store, "Nigeria", testLogger())
	id, err := listing.AddProduct(ctx, owner, NewProduct{Name: " Tomato ", Price: 2500, Unit: "basket", Category: "Vegetables", Quantity: 10})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var rec domain.ProductRecord
	require.NoError(t, repo.Get(ctx, remote.Products, id, &rec))
	assert.Equal(t, "Tomato", rec.Name)
	assert.Equal(t, "f1", rec.OwnerID)
	assert.Equal(t, "Green Acres", rec.OwnerName)
	assert.Equal(t, "Nigeria", rec.Location)
	assert.Equal(t, 0.5, rec.Rating)
	assert.False(t, rec.Verified)

	var profile domain.Session
	require.NoError(t, repo.Get(ctx, remote.Profiles, "f1", &profile))
	assert.Equal(t, 1, profile.TotalProducts)
}

func TestListing_DefaultsWithoutFarmName(t *testing.T) {
	store, repo := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.Write(ctx, remote.Profiles, "f2", map[string]interface{}{"role": "farmer"}))

	owner := &domain.Session{ID: "f2", Role: domain.RoleFarmer, Location: "Kano"}
	id, err := NewListing(store, "Nigeria", testLogger()).AddProduct(ctx, owner, NewProduct{Name: "Millet"})
	require.NoError(t, err)

	var rec domain.ProductRecord
	require.NoError(t, repo.Get(ctx, remote.Products, id, &rec))
	assert.Equal(t, UnknownOwner, rec.OwnerName)
	assert.Equal(t, "Kano", rec.Location)
	assert.Equal(t, domain.CategoryOther, rec.Category)
}

func TestListing_Rejects(t *testing.T) {
	store, _ := setupStore(t)
	listing := NewListing(store, "Nigeria", testLogger())
	farmer := &domain.Session{ID: "f1", Role: domain.RoleFarmer}

	tests := []struct {
		name    string
		owner   *domain.Session
		product NewProduct
		want    error
	}{
		{"buyer", &domain.Session{ID: "b1", Role: domain.RoleHousehold}, NewProduct{Name: "x"}, ErrNotFarmer},
		{"no session", nil, NewProduct{Name: "x"}, ErrNotFarmer},
		{"blank name", farmer, NewProduct{Name: "  "}, ErrInvalidProduct},
		{"negative price", farmer, NewProduct{Name: "x", Price: -1}, ErrInvalidProduct},
		{"unknown category", farmer, NewProduct{Name: "x", Category: "Gadgets"}, ErrInvalidProduct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := listing.AddProduct(context.Background(), tt.owner, tt.product)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestListing_MissingOwnerProfile(t *testing.T) {
	store, _ := setupStore(t)
	owner := &domain.Session{ID: "ghost", Role: domain.RoleFarmer}

	id, err := NewListing(store, "Nigeria", testLogger()).AddProduct(context.Background(), owner, NewProduct{Name: "Okra"})
	assert.NotEmpty(t, id)

	var werr *domain.WriteError
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, domain.WriteNotFound, werr.Code)
}
