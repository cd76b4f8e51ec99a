package material

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/curaious/fabricqr/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu    sync.Mutex
	items map[string]Material
	gets  int
	err   error
}

func newMemRepo(ms ...*Material) *memRepo {
	r := &memRepo{items: map[string]Material{}}
	for _, m := range ms {
		r.items[m.QRCodeID] = *m
	}
	return r
}

func (r *memRepo) GetByQRCodeID(_ context.Context, id string) (*Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	if r.err != nil {
		return nil, r.err
	}
	m, ok := r.items[id]
	if !ok {
		return nil, ErrMaterialNotFound
	}
	return &m, nil
}

func (r *memRepo) Upsert(_ context.Context, m *Material) error {
	if err := m.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	m.ID = "id-" + m.QRCodeID
	r.items[m.QRCodeID] = *m
	return nil
}

func (r *memRepo) Ping(context.Context) error { return r.err }

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*Material, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingCache) Set(context.Context, *Material) error { return errors.New("connection refused") }
func (failingCache) Delete(context.Context, string) error { return errors.New("connection refused") }
func (failingCache) Purge(context.Context) error          { return errors.New("connection refused") }
func (failingCache) Name() string                         { return "failing" }

func TestMaterialService_GetByQRCodeID(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo(sampleMaterial())
	svc := NewMaterialService(repo, NewLRUCache(8, time.Minute))

	got, err := svc.GetByQRCodeID(ctx, "FAB-001")
	require.NoError(t, err)
	assert.Equal(t, "Organic Cotton", got.MaterialName)

	_, err = svc.GetByQRCodeID(ctx, "FAB-001")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gets, "second lookup should be served from cache")
}

func TestMaterialService_NotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	svc := NewMaterialService(repo, NewLRUCache(8, time.Minute))

	_, err := svc.GetByQRCodeID(ctx, "FAB-404")
	assert.ErrorIs(t, err, ErrMaterialNotFound)
	_, err = svc.GetByQRCodeID(ctx, "FAB-404")
	assert.ErrorIs(t, err, ErrMaterialNotFound)
	assert.Equal(t, 2, repo.gets)
}

func TestMaterialService_CacheFailureFallsThrough(t *testing.T) {
	svc := NewMaterialService(newMemRepo(sampleMaterial()), failingCache{})

	got, err := svc.GetByQRCodeID(context.Background(), "FAB-001")
	require.NoError(t, err)
	assert.Equal(t, "FAB-001", got.QRCodeID)
}

func TestMaterialService_StoreError(t *testing.T) {
	repo := newMemRepo()
	repo.err = db.ErrNotConfigured
	svc := NewMaterialService(repo, nil)

	_, err := svc.GetByQRCodeID(context.Background(), "FAB-001")
	assert.ErrorIs(t, err, db.ErrNotConfigured)
}

func TestMaterialService_Import(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo()
	cache := NewLRUCache(8, time.Minute)
	svc := NewMaterialService(repo, cache)

	n, err := svc.Import(ctx, []Material{
		{QRCodeID: "FAB-001", MaterialName: "Cotton"},
		{QRCodeID: "FAB-002", MaterialName: "Linen", Features: []string{"cool"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	cached, ok, _ := cache.Get(ctx, "FAB-001")
	require.True(t, ok)
	assert.Equal(t, "id-FAB-001", cached.ID)
	assert.Equal(t, []string{}, cached.Features)
}

func TestMaterialService_ImportStopsOnInvalid(t *testing.T) {
	svc := NewMaterialService(newMemRepo(), nil)

	n, err := svc.Import(context.Background(), []Material{
		{QRCodeID: "FAB-001", MaterialName: "Cotton"},
		{QRCodeID: "FAB-002"},
		{QRCodeID: "FAB-003", MaterialName: "Wool"},
	})
	assert.ErrorIs(t, err, ErrMissingName)
	assert.Equal(t, 1, n)
}

func TestMaterialService_Invalidate(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo(sampleMaterial())
	svc := NewMaterialService(repo, NewLRUCache(8, time.Minute))

	_, err := svc.GetByQRCodeID(ctx, "FAB-001")
	require.NoError(t, err)

	svc.Invalidate(ctx, "FAB-001")
	_, err = svc.GetByQRCodeID(ctx, "FAB-001")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.gets)

	svc.InvalidateAll(ctx)
	_, err = svc.GetByQRCodeID(ctx, "FAB-001")
	require.NoError(t, err)
	assert.Equal(t, 3, repo.gets)

	NewMaterialService(repo, failingCache{}).InvalidateAll(ctx)
}

func TestUnavailableRepo(t *testing.T) {
	repo := NewUnavailableRepo()
	_, err := repo.GetByQRCodeID(context.Background(), "x")
	assert.ErrorIs(t, err, db.ErrNotConfigured)
	assert.ErrorIs(t, repo.Upsert(context.Background(), sampleMaterial()), db.ErrNotConfigured)
}

func TestMaterialService_StoreDeleteWithoutCache(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo(sampleMaterial())
	svc := NewMaterialService(repo, nil)

	_, err := svc.GetByQRCodeID(ctx, "FAB-001")
	require.NoError(t, err)

	delete(repo.items, "FAB-001")

	got, err := svc.GetByQRCodeID(ctx, "FAB-001")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrMaterialNotFound)
}

func TestMaterialService_UseCacheNilBypassesCache(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo(sampleMaterial())
	svc := NewMaterialService(repo, NewLRUCache(8, time.Minute))

	_, err := svc.GetByQRCodeID(ctx, "FAB-001")
	require.NoError(t, err)
	svc.UseCache(nil)
	_, err = svc.GetByQRCodeID(ctx, "FAB-001")
	require.NoError(t, err)

	assert.Equal(t, 2, repo.gets)
}
