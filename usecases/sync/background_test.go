package sync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitpulse/models"
	"gitpulse/services/repositories"
)

// gatedSyncer records per-repository call counts and holds every job on a
// gate so tests can dispatch again while workers are still busy.
type gatedSyncer struct {
	mu      sync.Mutex
	calls   map[string]int
	started chan string
	gate    chan struct{}
}

func newGatedSyncer() *gatedSyncer {
	return &gatedSyncer{
		calls:   make(map[string]int),
		started: make(chan string, 16),
		gate:    make(chan struct{}),
	}
}

func (s *gatedSyncer) SyncRepository(ctx context.Context, repositoryID string) (*models.SyncResult, error) {
	s.mu.Lock()
	s.calls[repositoryID]++
	s.mu.Unlock()

	s.started <- repositoryID
	<-s.gate
	return &models.SyncResult{RepositoryID: repositoryID}, nil
}

func (s *gatedSyncer) callCount(repositoryID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[repositoryID]
}

func TestDispatchDueSyncs_NeverDoubleDispatchesQueuedRepository(t *testing.T) {
	syncer := newGatedSyncer()
	reposService := new(repositories.MockTrackedRepositoriesService)

	due := []*models.TrackedRepository{
		{ID: "repo_a", FullName: "acme/api"},
		{ID: "repo_b", FullName: "acme/web"},
	}
	reposService.On("ListRepositoriesDueForSync", mock.Anything, mock.Anything).Return(due, nil)

	scheduler := NewSyncScheduler(syncer, reposService, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, scheduler.DispatchDueSyncs(ctx))

	// one worker: the first repository runs, the second sits in the queue
	<-syncer.started

	// the next tick fires while both jobs are still pending in this process;
	// neither may be submitted a second time
	require.NoError(t, scheduler.DispatchDueSyncs(ctx))

	close(syncer.gate)
	scheduler.Stop()

	assert.Equal(t, 1, syncer.callCount("repo_a"))
	assert.Equal(t, 1, syncer.callCount("repo_b"))
}

func TestDispatchDueSyncs_RedispatchesAfterCompletion(t *testing.T) {
	syncer := newGatedSyncer()
	close(syncer.gate)

	reposService := new(repositories.MockTrackedRepositoriesService)
	due := []*models.TrackedRepository{{ID: "repo_a", FullName: "acme/api"}}
	reposService.On("ListRepositoriesDueForSync", mock.Anything, mock.Anything).Return(due, nil)

	scheduler := NewSyncScheduler(syncer, reposService, 1, time.Minute)
	ctx := context.Background()

	require.NoError(t, scheduler.DispatchDueSyncs(ctx))
	require.Eventually(t, func() bool {
		scheduler.mu.Lock()
		defer scheduler.mu.Unlock()
		_, busy := scheduler.inFlight["repo_a"]
		return syncer.callCount("repo_a") == 1 && !busy
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, scheduler.DispatchDueSyncs(ctx))
	scheduler.Stop()

	assert.Equal(t, 2, syncer.callCount("repo_a"))
}
