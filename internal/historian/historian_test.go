// internal/historian/historian_test.go
package historian

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Ahlecss/Gobeluno-server/internal/cache"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chanSource serves records pushed onto a channel.
type chanSource struct {
	ch chan cache.GameActionRecord
}

func (s *chanSource) Pop(ctx context.Context, timeout time.Duration) (cache.GameActionRecord, bool, error) {
	select {
	case rec := <-s.ch:
		return rec, true, nil
	case <-time.After(timeout):
		return cache.GameActionRecord{}, false, nil
	case <-ctx.Done():
		return cache.GameActionRecord{}, false, ctx.Err()
	}
}

type memSink struct {
	mu        sync.Mutex
	batches   [][]cache.GameActionRecord
	abandoned []uuid.UUID
	failNext  bool
}

func (m *memSink) InsertGameActions(_ context.Context, records []cache.GameActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return errors.New("db down")
	}
	m.batches = append(m.batches, records)
	return nil
}

func (m *memSink) MarkGameAbandoned(_ context.Context, gameID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abandoned = append(m.abandoned, gameID)
	return nil
}

func (m *memSink) stored() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func record(gameID uuid.UUID, idx int, typ string) cache.GameActionRecord {
	return cache.GameActionRecord{
		SessionID:   uuid.New(),
		GameID:      gameID,
		ActionIndex: idx,
		ActionType:  typ,
		Timestamp:   time.Now().UnixMilli(),
	}
}

func TestBatchFlushesWhenFull(t *testing.T) {
	sink := &memSink{}
	opts := DefaultOptions()
	opts.BatchSize = 3
	hs := New(quietLogger(), &chanSource{}, sink, opts)
	ctx := context.Background()

	gameID := uuid.New()
	hs.append(ctx, record(gameID, 1, "game_start"))
	hs.append(ctx, record(gameID, 2, "play_card"))
	assert.Zero(t, sink.stored())

	hs.append(ctx, record(gameID, 3, "play_card"))
	assert.Equal(t, 3, sink.stored())
	require.Len(t, sink.batches, 1)
}

func TestFailedFlushIsRetried(t *testing.T) {
	sink := &memSink{failNext: true}
	hs := New(quietLogger(), &chanSource{}, sink, DefaultOptions())
	ctx := context.Background()

	hs.append(ctx, record(uuid.New(), 1, "draw_card"))
	hs.Flush(ctx)
	assert.Zero(t, sink.stored())

	hs.Flush(ctx)
	assert.Equal(t, 1, sink.stored())
}

func TestRunDrainsSourceAndFlushesOnStop(t *testing.T) {
	src := &chanSource{ch: make(chan cache.GameActionRecord, 10)}
	sink := &memSink{}
	opts := DefaultOptions()
	opts.BatchSize = 100
	opts.FlushInterval = time.Hour
	opts.PopTimeout = 20 * time.Millisecond
	hs := New(quietLogger(), src, sink, opts)

	gameID := uuid.New()
	for i := 1; i <= 5; i++ {
		src.ch <- record(gameID, i, "play_card")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hs.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(src.ch) == 0 }, 2*time.Second, 5*time.Millisecond)
	// Give the reader a moment to buffer the last popped record.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 5, sink.stored())
}

func TestSweepMarksIdleGamesAbandoned(t *testing.T) {
	sink := &memSink{}
	opts := DefaultOptions()
	opts.Inactivity = time.Minute
	hs := New(quietLogger(), &chanSource{}, sink, opts)
	ctx := context.Background()

	idle, active, finished := uuid.New(), uuid.New(), uuid.New()
	hs.track(record(idle, 1, "game_start"))
	hs.track(record(active, 1, "game_start"))
	hs.track(record(finished, 1, "game_start"))
	hs.track(record(finished, 2, "game_over"))
	hs.track(record(uuid.Nil, 1, "player_connect"))

	hs.lastActivity.Store(idle, time.Now().Add(-2*time.Minute))
	hs.sweep(ctx, time.Now())

	assert.Equal(t, []uuid.UUID{idle}, sink.abandoned)

	hs.sweep(ctx, time.Now())
	assert.Len(t, sink.abandoned, 1, "abandoned games are forgotten")
}
