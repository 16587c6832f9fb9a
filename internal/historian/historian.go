// internal/historian/historian.go is an asynchronous consumer that pops action
// records from a queue and persists them in batches.
package historian

import (
	"context"
	"sync"
	"time"

	"github.com/Ahlecss/Gobeluno-server/internal/cache"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Source yields queued action records, e.g. cache.Consumer.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) (cache.GameActionRecord, bool, error)
}

// Sink stores action batches and closes stale games, e.g. database.Store.
type Sink interface {
	InsertGameActions(ctx context.Context, records []cache.GameActionRecord) error
	MarkGameAbandoned(ctx context.Context, gameID uuid.UUID) error
}

// Options tune batching and the abandonment check.
type Options struct {
	BatchSize     int
	FlushInterval time.Duration
	PopTimeout    time.Duration
	Inactivity    time.Duration // a game with no actions for this long is marked abandoned
	SweepInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		BatchSize:     20,
		FlushInterval: 500 * time.Millisecond,
		PopTimeout:    3 * time.Second,
		Inactivity:    10 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Service drains Source into Sink.
type Service struct {
	src  Source
	sink Sink
	opts Options
	log  *logrus.Entry

	lastActivity sync.Map // uuid.UUID -> time.Time, games still in progress

	batchMu sync.Mutex
	batch   []cache.GameActionRecord
}

func New(logger *logrus.Logger, src Source, sink Sink, opts Options) *Service {
	if opts.BatchSize < 1 {
		opts.BatchSize = 1
	}
	return &Service{
		src:   src,
		sink:  sink,
		opts:  opts,
		log:   logger.WithField("component", "historian"),
		batch: make([]cache.GameActionRecord, 0, opts.BatchSize),
	}
}

// Run blocks until ctx is cancelled, then flushes whatever is still buffered.
func (hs *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); hs.readLoop(ctx) }()
	go func() { defer wg.Done(); hs.flushLoop(ctx) }()
	go func() { defer wg.Done(); hs.inactivityLoop(ctx) }()

	hs.log.Info("historian started")
	wg.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hs.Flush(flushCtx)
	hs.log.Info("historian stopped")
}

func (hs *Service) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		rec, ok, err := hs.src.Pop(ctx, hs.opts.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			hs.log.WithError(err).Error("pop failed")
			// Back off so a dead queue does not spin.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			continue
		}
		hs.track(rec)
		hs.append(ctx, rec)
	}
}

func (hs *Service) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(hs.opts.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.Flush(ctx)
		}
	}
}

// track records activity for in-progress games and forgets finished ones.
func (hs *Service) track(rec cache.GameActionRecord) {
	if rec.GameID == uuid.Nil {
		return
	}
	switch rec.ActionType {
	case "game_over", "game_abort":
		hs.lastActivity.Delete(rec.GameID)
	default:
		hs.lastActivity.Store(rec.GameID, time.Now())
	}
}

func (hs *Service) append(ctx context.Context, rec cache.GameActionRecord) {
	hs.batchMu.Lock()
	hs.batch = append(hs.batch, rec)
	full := len(hs.batch) >= hs.opts.BatchSize
	hs.batchMu.Unlock()

	if full {
		hs.Flush(ctx)
	}
}

// Flush writes the buffered batch in one transaction. A failed batch is put
// back in front of newer records and retried on the next flush.
func (hs *Service) Flush(ctx context.Context) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	if len(hs.batch) == 0 {
		return
	}
	pending := make([]cache.GameActionRecord, len(hs.batch))
	copy(pending, hs.batch)

	if err := hs.sink.InsertGameActions(ctx, pending); err != nil {
		hs.log.WithError(err).Errorf("failed to flush %d actions", len(pending))
		return
	}
	hs.batch = hs.batch[:0]
	hs.log.Debugf("flushed %d actions", len(pending))
}

func (hs *Service) inactivityLoop(ctx context.Context) {
	ticker := time.NewTicker(hs.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.sweep(ctx, time.Now())
		}
	}
}

// sweep marks games idle since before now-Inactivity as abandoned.
func (hs *Service) sweep(ctx context.Context, now time.Time) {
	hs.lastActivity.Range(func(key, val interface{}) bool {
		gameID, ok1 := key.(uuid.UUID)
		last, ok2 := val.(time.Time)
		if !ok1 || !ok2 || now.Sub(last) <= hs.opts.Inactivity {
			return true
		}
		if err := hs.sink.MarkGameAbandoned(ctx, gameID); err != nil {
			hs.log.WithError(err).WithField("game", gameID).Warn("failed to mark game abandoned")
			return true
		}
		hs.lastActivity.Delete(gameID)
		hs.log.WithField("game", gameID).Info("marked game abandoned after inactivity")
		return true
	})
}
