package sync

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gammazero/workerpool"

	"gitpulse/models"
	"gitpulse/services"
)

const (
	DefaultSyncWorkers  = 4
	DefaultSyncInterval = 5 * time.Minute
)

type repositorySyncer interface {
	SyncRepository(ctx context.Context, repositoryID string) (*models.SyncResult, error)
}

// SyncScheduler periodically picks repositories due for sync and dispatches
// them to a worker pool. A repository already in the syncing state is skipped
// by the due query, and repositories queued or in flight in this process are
// tracked so a slow worker never causes a second job for the same repository.
type SyncScheduler struct {
	syncer       repositorySyncer
	reposService services.TrackedRepositoriesService
	pool         *workerpool.WorkerPool
	interval     time.Duration
	wrapTask     func(string, func() error) func() error

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewSyncScheduler(
	syncer repositorySyncer,
	reposService services.TrackedRepositoriesService,
	workers int,
	interval time.Duration,
) *SyncScheduler {
	if workers <= 0 {
		workers = DefaultSyncWorkers
	}
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &SyncScheduler{
		syncer:       syncer,
		reposService: reposService,
		pool:         workerpool.New(workers),
		interval:     interval,
		wrapTask:     func(_ string, task func() error) func() error { return task },
		inFlight:     make(map[string]struct{}),
	}
}

// UseTaskWrapper installs a wrapper (panic recovery, error alerting) around
// each dispatch cycle. Must be called before Start.
func (s *SyncScheduler) UseTaskWrapper(wrap func(string, func() error) func() error) {
	s.wrapTask = wrap
}

// Start launches the scheduling loop. It returns immediately; the loop stops
// when ctx is cancelled.
func (s *SyncScheduler) Start(ctx context.Context) {
	log.Printf("✅ Sync scheduler started, interval %v", s.interval)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Printf("📋 Sync scheduler stopping")
				return
			case <-ticker.C:
				dispatch := s.wrapTask("DispatchDueSyncs", func() error {
					return s.DispatchDueSyncs(ctx)
				})
				if err := dispatch(); err != nil {
					log.Printf("❌ Failed to dispatch due syncs: %v", err)
				}
			}
		}
	}()
}

// DispatchDueSyncs submits one sync job per due repository to the pool.
// Submit never blocks; jobs queue when all workers are busy. The due query
// only reflects jobs a worker has picked up, so repositories still waiting in
// the queue are filtered here to keep one writer per repository.
func (s *SyncScheduler) DispatchDueSyncs(ctx context.Context) error {
	repos, err := s.reposService.ListRepositoriesDueForSync(ctx, s.interval)
	if err != nil {
		return err
	}

	dispatched := 0
	for _, repo := range repos {
		repoID := repo.ID
		if !s.claim(repoID) {
			continue
		}

		dispatched++
		s.pool.Submit(func() {
			defer s.release(repoID)
			if _, err := s.syncer.SyncRepository(ctx, repoID); err != nil {
				log.Printf("❌ Sync failed for repository %s: %v", repoID, err)
			}
		})
	}

	if dispatched > 0 {
		log.Printf("📤 Dispatched %d repositories for sync", dispatched)
	}
	return nil
}

// claim reserves the repository for one sync job. Returns false when a job
// for it is already queued or running.
func (s *SyncScheduler) claim(repoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[repoID]; busy {
		return false
	}
	s.inFlight[repoID] = struct{}{}
	return true
}

func (s *SyncScheduler) release(repoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, repoID)
}

// Stop drains queued jobs and waits for in-flight syncs to finish.
func (s *SyncScheduler) Stop() {
	s.pool.StopWait()
}
