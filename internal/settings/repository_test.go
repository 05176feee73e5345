package settings

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memBackend struct {
	mu      sync.Mutex
	servers map[string]*Server
	loads   atomic.Int32
	saves   atomic.Int32
	gate    chan struct{}
	saveErr error
}

func newMemBackend() *memBackend {
	return &memBackend{servers: map[string]*Server{}}
}

func (b *memBackend) LoadServer(ctx context.Context, serverID string) (*Server, bool, error) {
	b.loads.Add(1)
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	server, ok := b.servers[serverID]
	if !ok {
		return nil, false, nil
	}
	return server.Clone(), true, nil
}

func (b *memBackend) SaveServer(ctx context.Context, server *Server) error {
	b.saves.Add(1)
	if b.saveErr != nil {
		return b.saveErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.servers[server.ID] = server.Clone()
	return nil
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) (*Server, bool, error) {
	return nil, false, errors.New("cache down")
}
func (brokenCache) Set(context.Context, *Server) error  { return errors.New("cache down") }
func (brokenCache) Purge(context.Context, string) error { return nil }

func TestGetCreatesDefaults(t *testing.T) {
	backend := newMemBackend()
	repo := NewRepository(backend, NewMemCache(8, time.Minute), zap.NewNop())
	ctx := context.Background()

	server, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, NewServer("s1"), server)
	assert.Equal(t, DefaultStarboardThreshold, server.Starboard.Threshold)
	assert.Contains(t, backend.servers, "s1")

	_, err = repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, backend.loads.Load(), "second read should hit the cache")
}

func TestGetReturnsPrivateCopies(t *testing.T) {
	repo := NewRepository(newMemBackend(), NewMemCache(8, time.Minute), zap.NewNop())
	ctx := context.Background()

	first, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	first.MessageChecker.AddBannedWord("spam")

	second, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, second.MessageChecker.BannedWords)

	require.NoError(t, repo.Save(ctx, first))
	third, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"spam"}, third.MessageChecker.BannedWords)
}

func TestSaveFailureLeavesCacheAlone(t *testing.T) {
	backend := newMemBackend()
	repo := NewRepository(backend, NewMemCache(8, time.Minute), zap.NewNop())
	ctx := context.Background()

	server, err := repo.Get(ctx, "s1")
	require.NoError(t, err)

	backend.saveErr = errors.New("disk full")
	server.MessageChecker.DeleteMessage = true
	require.Error(t, repo.Save(ctx, server))

	again, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, again.MessageChecker.DeleteMessage)
}

func TestGetWorksWithoutCache(t *testing.T) {
	backend := newMemBackend()
	repo := NewRepository(backend, brokenCache{}, zap.NewNop())
	ctx := context.Background()

	_, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	_, err = repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, backend.loads.Load())
}

func TestConcurrentGetLoadsOnce(t *testing.T) {
	backend := newMemBackend()
	backend.gate = make(chan struct{})
	repo := NewRepository(backend, nil, zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]*Server, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			server, err := repo.Get(ctx, "s1")
			assert.NoError(t, err)
			results[i] = server
		}(i)
	}

	require.Eventually(t, func() bool { return backend.loads.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(backend.gate)
	wg.Wait()

	assert.EqualValues(t, 1, backend.saves.Load())
	results[0].MessageChecker.AddBannedWord("spam")
	assert.Empty(t, results[1].MessageChecker.BannedWords)
}
