package jobs

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/vkral/souffleur/internal/store"
)

// MaintenanceJob performs periodic housekeeping:
// - Completes interviews left "active" by a crashed or disconnected session
// - Deletes expired auth sessions
type MaintenanceJob struct {
	store    *store.Store
	logger   *log.Logger
	interval time.Duration
	maxAge   time.Duration // active interviews older than this are considered stale
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewMaintenanceJob creates a new maintenance job.
func NewMaintenanceJob(s *store.Store, logger *log.Logger, interval, maxAge time.Duration) *MaintenanceJob {
	if interval == 0 {
		interval = 15 * time.Minute
	}
	if maxAge == 0 {
		maxAge = 4 * time.Hour
	}
	return &MaintenanceJob{
		store:    s,
		logger:   logger,
		interval: interval,
		maxAge:   maxAge,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background job.
func (j *MaintenanceJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.Printf("MaintenanceJob: started (interval=%v)", j.interval)
}

// Stop gracefully stops the background job.
func (j *MaintenanceJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Println("MaintenanceJob: stopped")
}

func (j *MaintenanceJob) run() {
	defer j.wg.Done()

	// Run immediately on start
	j.processAll()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.processAll()
		case <-j.stopCh:
			return
		}
	}
}

func (j *MaintenanceJob) processAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	j.sweepStaleInterviews(ctx)
	j.purgeExpiredSessions(ctx)
}

func (j *MaintenanceJob) sweepStaleInterviews(ctx context.Context) {
	n, err := j.store.MarkStaleInterviewsEnded(ctx, j.maxAge)
	if err != nil {
		j.logger.Printf("MaintenanceJob: failed to sweep stale interviews: %v", err)
		return
	}
	if n > 0 {
		j.logger.Printf("MaintenanceJob: completed %d stale interviews", n)
	}
}

func (j *MaintenanceJob) purgeExpiredSessions(ctx context.Context) {
	n, err := j.store.DeleteExpiredSessions(ctx)
	if err != nil {
		j.logger.Printf("MaintenanceJob: failed to purge expired sessions: %v", err)
		return
	}
	if n > 0 {
		j.logger.Printf("MaintenanceJob: purged %d expired sessions", n)
	}
}
