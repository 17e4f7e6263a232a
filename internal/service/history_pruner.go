package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"whiteboard/internal/domain"
)

const pruneJob = "history-prune"

// HistoryPruner trims conversation history on a cron schedule, keeping the
// newest messages of every session.
type HistoryPruner struct {
	store   domain.MessageStore
	mu      sync.Mutex
	keep    int
	emitter EventEmitter
	log     *zap.Logger

	running   runningGuard
	cronSched *cron.Cron
}

func NewHistoryPruner(store domain.MessageStore, keepPerSession int, emitter EventEmitter, log *zap.Logger) *HistoryPruner {
	if log == nil {
		log = zap.NewNop()
	}
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &HistoryPruner{
		store:   store,
		keep:    keepPerSession,
		emitter: emitter,
		log:     log.With(zap.String("component", "history-pruner")),
	}
}

// SetKeep changes how many messages per session survive the next run.
func (p *HistoryPruner) SetKeep(n int) {
	p.mu.Lock()
	p.keep = n
	p.mu.Unlock()
}

// Start schedules pruning with a standard five-field cron expression.
// Calling Start again replaces the previous schedule.
func (p *HistoryPruner) Start(schedule string) error {
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		if _, err := p.RunOnce(context.Background()); err != nil {
			p.log.Warn("prune failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule %q: %w", schedule, err)
	}

	p.stopCron()
	c.Start()
	p.cronSched = c
	p.log.Info("history pruning scheduled", zap.String("schedule", schedule), zap.Int("keep", p.keep))
	return nil
}

// RunOnce prunes immediately. Overlapping runs are skipped.
func (p *HistoryPruner) RunOnce(ctx context.Context) (int64, error) {
	if !p.running.TryLock(pruneJob) {
		return 0, nil
	}
	defer p.running.Unlock(pruneJob)

	p.mu.Lock()
	keep := p.keep
	p.mu.Unlock()

	n, err := p.store.PruneMessages(keep)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.log.Info("pruned history", zap.Int64("removed", n))
		p.emitter.Emit(ctx, EventHistoryPrune, map[string]int64{"removed": n})
	}
	return n, nil
}

// Stop cancels the schedule and waits for a running prune to finish.
func (p *HistoryPruner) Stop(ctx context.Context) {
	p.stopCron()
	p.running.WaitAll(ctx)
}

func (p *HistoryPruner) stopCron() {
	if p.cronSched != nil {
		<-p.cronSched.Stop().Done()
		p.cronSched = nil
	}
}
