package ingest

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Nemiok/gde-deshevle/internal/model"
)

// ErrSweepInProgress is returned when a sweep is requested while another one
// is still running. Sweeps never overlap; a trigger landing mid-sweep is
// skipped, not queued.
var ErrSweepInProgress = eris.New("ingest: sweep already in progress")

// Scheduler fires recurring sweeps on a cron spec and accepts manual
// triggers between them.
type Scheduler struct {
	cron  *cron.Cron
	orch  *Orchestrator
	slugs []string

	mu      sync.Mutex
	running bool

	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler sweeping the given stores on the cron
// spec (e.g. "@every 6h").
func NewScheduler(orch *Orchestrator, spec string, slugs []string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		orch:    orch,
		slugs:   slugs,
		baseCtx: context.Background(),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, eris.Wrapf(err, "ingest: invalid schedule spec %q", spec)
	}
	return s, nil
}

// Start begins firing scheduled sweeps. The context bounds every scheduled
// sweep started after this call.
func (s *Scheduler) Start(ctx context.Context) {
	s.baseCtx = ctx
	s.cron.Start()
	zap.L().Info("scheduler started", zap.Strings("stores", s.slugs))
}

// Stop halts scheduling and waits for an in-flight sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	zap.L().Info("scheduler stopped")
}

// RunNow triggers a sweep immediately, outside the schedule. Returns
// ErrSweepInProgress when one is already running.
func (s *Scheduler) RunNow(ctx context.Context, slugs []string) ([]model.RunStats, error) {
	if !s.tryAcquire() {
		return nil, ErrSweepInProgress
	}
	defer s.release()

	if len(slugs) == 0 {
		slugs = s.slugs
	}
	return s.orch.RunSweep(ctx, slugs)
}

func (s *Scheduler) tick() {
	if !s.tryAcquire() {
		zap.L().Warn("scheduled sweep skipped, previous one still running")
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.release()

	if _, err := s.orch.RunSweep(s.baseCtx, s.slugs); err != nil {
		zap.L().Error("scheduled sweep failed", zap.Error(err))
	}
}

func (s *Scheduler) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
