package mq

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Sequencer/internal/domain"
)

// fakeAcknowledger запоминает, как было подтверждено сообщение.
type fakeAcknowledger struct {
	acked   bool
	nacked  bool
	requeue bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.acked = true
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked = true
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	return a.Nack(0, false, requeue)
}

func newTestConsumer(h Handler) *Consumer {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewConsumer(nil, logger, ConsumerConfig{Queue: QueueRunsPending, Handler: h})
}

func delivery(t *testing.T, ack amqp.Acknowledger, body any, redelivered bool) amqp.Delivery {
	t.Helper()
	raw, ok := body.([]byte)
	if !ok {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
	}
	return amqp.Delivery{Acknowledger: ack, Body: raw, Redelivered: redelivered}
}

func TestHandleDelivery(t *testing.T) {
	runID := uuid.New()
	msg := NewMessage(MessageTypeRunPending, RunPendingPayload{RunID: runID})
	failing := errors.New("db down")

	tests := []struct {
		name        string
		body        any
		redelivered bool
		handlerErr  error
		wantAck     bool
		wantRequeue bool
	}{
		{name: "success", body: msg, wantAck: true},
		{name: "first failure requeued", body: msg, handlerErr: failing, wantRequeue: true},
		{name: "second failure dead-lettered", body: msg, redelivered: true, handlerErr: failing},
		{name: "malformed body", body: []byte("{not json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got RunPendingPayload
			c := newTestConsumer(func(_ context.Context, d *Delivery) error {
				p, err := ParsePayload[RunPendingPayload](&d.Message)
				if err != nil {
					return err
				}
				got = p
				return tt.handlerErr
			})

			ack := &fakeAcknowledger{}
			c.handleDelivery(t.Context(), delivery(t, ack, tt.body, tt.redelivered))

			if ack.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", ack.acked, tt.wantAck)
			}
			if !tt.wantAck && !ack.nacked {
				t.Error("expected nack")
			}
			if ack.requeue != tt.wantRequeue {
				t.Errorf("requeue = %v, want %v", ack.requeue, tt.wantRequeue)
			}
			if tt.wantAck && got.RunID != runID {
				t.Errorf("expected run id %s, got %s", runID, got.RunID)
			}
		})
	}
}

func TestRunCompletedFromRun(t *testing.T) {
	run := domain.NewRun("", domain.PlanSpec{})
	run.MarkFinished(&domain.ExecutionResult{
		Status: domain.StatusPartiallySucceeded,
		Error:  &domain.Failure{Message: "division by zero"},
	}, "1/2 steps")

	p := RunCompletedFromRun(run)
	if p.RunID != run.ID || p.Status != domain.RunStatusPartial {
		t.Errorf("unexpected payload %+v", p)
	}
	if p.PlanStatus != domain.StatusPartiallySucceeded || p.Error != "division by zero" || p.Summary != "1/2 steps" {
		t.Errorf("unexpected payload %+v", p)
	}
}

func TestTopology(t *testing.T) {
	exchanges, queues, bindings := topology()

	declared := make(map[Exchange]bool)
	for _, ex := range exchanges {
		declared[ex.name] = true
	}
	known := make(map[Queue]bool)
	for _, q := range queues {
		known[q.name] = true
	}

	for _, b := range bindings {
		if !declared[b.exchange] {
			t.Errorf("binding to undeclared exchange %s", b.exchange)
		}
		if !known[b.queue] {
			t.Errorf("binding of undeclared queue %s", b.queue)
		}
	}

	for _, q := range queues {
		if q.name != QueueRunsPending {
			continue
		}
		if q.args["x-dead-letter-exchange"] != string(ExchangeDLQ) {
			t.Errorf("runs.pending must dead-letter to %s", ExchangeDLQ)
		}
	}
}

func TestNextDelay(t *testing.T) {
	tests := []struct {
		prev time.Duration
		want time.Duration
	}{
		{0, time.Second},
		{time.Second, 2 * time.Second},
		{8 * time.Second, 16 * time.Second},
		{20 * time.Second, 30 * time.Second},
		{30 * time.Second, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := nextDelay(tt.prev); got != tt.want {
			t.Errorf("nextDelay(%v) = %v, want %v", tt.prev, got, tt.want)
		}
	}
}

func TestReconnect_StopsAfterClose(t *testing.T) {
	c := &Connection{
		url:         "amqp://unreachable",
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	done := make(chan bool, 1)
	go func() { done <- c.reconnect() }()

	select {
	case ok := <-done:
		if ok {
			t.Error("reconnect must give up on a closed connection")
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatal("reconnect kept waiting after close")
	}

	select {
	case <-c.ReconnectNotify():
		t.Error("consumers must not be notified")
	default:
	}
}
