package syncer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler rate-limits write-triggered backups. A full-directory backup
// is expensive and writes can be frequent, so at most one backup runs
// per interval; writes inside the cooldown set a pending flag instead of
// being silently dropped.
type Scheduler struct {
	mu         sync.Mutex
	syncer     *Syncer
	interval   time.Duration
	lastBackup time.Time
	pending    bool
	logger     *zap.Logger
}

// NewScheduler creates a scheduler that backs up through the given
// syncer at most once per interval.
func NewScheduler(s *Syncer, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		syncer:   s,
		interval: interval,
		logger:   logger,
	}
}

// NotifyWrite records that the index was written. It backs up
// immediately when no backup has ever completed or the interval has
// elapsed since the last one; otherwise the write is marked pending.
// Backup failures are logged, never surfaced: durability errors must
// not fail the ingestion that triggered them.
func (s *Scheduler) NotifyWrite(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.lastBackup.IsZero() && time.Since(s.lastBackup) < s.interval {
		s.pending = true
		s.logger.Debug("backup deferred",
			zap.Time("last_backup", s.lastBackup),
			zap.Duration("interval", s.interval),
		)
		return
	}

	if _, err := s.syncer.Backup(ctx); err != nil {
		s.pending = true
		s.logger.Error("write-triggered backup failed", zap.Error(err))
		return
	}

	s.lastBackup = time.Now()
	s.pending = false
}

// Flush runs a backup now if one is pending, regardless of the cooldown.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.pending {
		return nil
	}

	if _, err := s.syncer.Backup(ctx); err != nil {
		return err
	}

	s.lastBackup = time.Now()
	s.pending = false
	return nil
}

// Status reports the last completed backup time (zero if none) and
// whether a backup is owed.
func (s *Scheduler) Status() (lastBackup time.Time, pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastBackup, s.pending
}
