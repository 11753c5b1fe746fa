package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Sequencer/internal/domain"
	"github.com/shaiso/Sequencer/internal/mq"
	"github.com/shaiso/Sequencer/internal/orchestrator"
)

// fakeProcessor запоминает обработанные runs и следит за параллелизмом.
type fakeProcessor struct {
	mu        sync.Mutex
	processed []uuid.UUID
	err       error
	delay     time.Duration

	active    atomic.Int32
	maxActive atomic.Int32
}

func (p *fakeProcessor) Process(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		cur := p.maxActive.Load()
		if n <= cur || p.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	time.Sleep(p.delay)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	p.processed = append(p.processed, id)
	return &domain.Run{ID: id, Status: domain.RunStatusSucceeded}, nil
}

func (p *fakeProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

type fakeLister struct {
	runs []domain.Run
	err  error
}

func (l *fakeLister) ListPending(_ context.Context, limit int) ([]domain.Run, error) {
	if l.err != nil {
		return nil, l.err
	}
	if len(l.runs) > limit {
		return l.runs[:limit], nil
	}
	return l.runs, nil
}

func pendingRuns(n int) []domain.Run {
	runs := make([]domain.Run, n)
	for i := range runs {
		runs[i] = *domain.NewRun("", domain.PlanSpec{})
	}
	return runs
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_Defaults(t *testing.T) {
	w := New(Config{})

	if w.pollInterval != defaultPollInterval {
		t.Errorf("expected poll interval %v, got %v", defaultPollInterval, w.pollInterval)
	}
	if w.batchSize != defaultBatchSize || w.concurrency != defaultConcurrency {
		t.Errorf("unexpected defaults: batch %d, concurrency %d", w.batchSize, w.concurrency)
	}
	if w.logger == nil {
		t.Error("expected default logger")
	}
}

func TestPoll_BoundedConcurrency(t *testing.T) {
	proc := &fakeProcessor{delay: 20 * time.Millisecond}
	w := New(Config{
		Processor:   proc,
		Pending:     &fakeLister{runs: pendingRuns(10)},
		BatchSize:   8,
		Concurrency: 3,
		Logger:      discard(),
	})

	w.poll(t.Context())

	if got := proc.count(); got != 8 {
		t.Errorf("expected 8 processed runs (batch size), got %d", got)
	}
	if got := proc.maxActive.Load(); got > 3 {
		t.Errorf("expected at most 3 concurrent runs, got %d", got)
	}
}

func TestPoll_ListError(t *testing.T) {
	proc := &fakeProcessor{}
	w := New(Config{Processor: proc, Pending: &fakeLister{err: errors.New("db down")}, Logger: discard()})

	w.poll(t.Context())

	if proc.count() != 0 {
		t.Error("nothing must be processed")
	}
}

func TestHandleRunPending(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "processed"},
		{name: "already taken", err: orchestrator.ErrRunNotPending},
		{name: "deleted", err: orchestrator.ErrRunNotFound},
		{name: "database failure", err: errors.New("connection reset"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(Config{Processor: &fakeProcessor{err: tt.err}, Logger: discard()})

			msg := mq.NewMessage(mq.MessageTypeRunPending, mq.RunPendingPayload{RunID: uuid.New()})
			err := w.handleRunPending(t.Context(), &mq.Delivery{Message: *msg})
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStartStop_PollsImmediately(t *testing.T) {
	proc := &fakeProcessor{}
	w := New(Config{
		Processor:    proc,
		Pending:      &fakeLister{runs: pendingRuns(2)},
		PollInterval: time.Hour,
		Logger:       discard(),
	})

	if err := w.Start(t.Context()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for proc.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	w.Stop()

	if proc.count() != 2 {
		t.Errorf("expected initial poll to process 2 runs, got %d", proc.count())
	}
	if !w.IsStopped() {
		t.Error("expected worker to be stopped")
	}
}
