package sqlstore

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/eventfeed/component"
	"github.com/kbukum/eventfeed/logger"
)

// Pruner periodically deletes events older than a retention period.
type Pruner struct {
	store     *Store
	retention time.Duration
	interval  time.Duration
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ component.Component = (*Pruner)(nil)

// NewPruner creates a pruner. It runs every interval, or every
// retention/10 when interval is zero.
func NewPruner(store *Store, retention, interval time.Duration, log *logger.Logger) *Pruner {
	if interval <= 0 {
		interval = retention / 10
	}
	if interval < time.Second {
		interval = time.Second
	}
	return &Pruner{store: store, retention: retention, interval: interval, log: log.WithComponent("pruner")}
}

// Name implements component.Component.
func (p *Pruner) Name() string { return "event-pruner" }

// Start launches the prune loop.
func (p *Pruner) Start(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.pruneOnce(ctx)
			}
		}
	}()
	return nil
}

func (p *Pruner) pruneOnce(ctx context.Context) {
	n, err := p.store.Prune(ctx, time.Now().Add(-p.retention))
	if err != nil {
		p.log.Warn("Prune failed", logger.Fields(logger.FieldError, err.Error()))
		return
	}
	if n > 0 {
		p.log.Info("Pruned events", logger.Fields("count", n, "retention", p.retention.String()))
	}
}

// Stop ends the prune loop.
func (p *Pruner) Stop(context.Context) error {
	if p.cancel != nil {
		p.cancel()
		p.wg.Wait()
	}
	return nil
}

// Health implements component.Component.
func (p *Pruner) Health(context.Context) component.Health {
	return component.Health{Name: p.Name(), Status: component.StatusHealthy}
}

// Describe implements component.Describable.
func (p *Pruner) Describe() component.Description {
	return component.Description{Type: "retention", Details: "keep " + p.retention.String() + " every " + p.interval.String()}
}
