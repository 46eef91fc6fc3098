package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"dompet/internal/amqp"
	"dompet/internal/log"
	"dompet/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoller struct {
	mu    sync.Mutex
	calls int
	err   error
	ran   chan struct{}
}

func (f *fakeRoller) Run(_ context.Context, _ time.Time) (services.RolloverResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.ran != nil {
		select {
		case f.ran <- struct{}{}:
		default:
		}
	}
	if f.err != nil {
		return services.RolloverResult{Status: services.Failed}, f.err
	}
	return services.RolloverResult{Status: services.NothingToDo}, nil
}

func (f *fakeRoller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRequests struct {
	msgs []*amqp.RolloverRequestMessage
}

func (f *fakeRequests) ConsumeRolloverRequests(ctx context.Context, handler func(context.Context, *amqp.RolloverRequestMessage) error) error {
	for _, m := range f.msgs {
		if err := handler(ctx, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

// brokenRequests fails every consume attempt, like a missing queue.
type brokenRequests struct {
	mu       sync.Mutex
	attempts int
}

func (b *brokenRequests) ConsumeRolloverRequests(_ context.Context, _ func(context.Context, *amqp.RolloverRequestMessage) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempts++
	return errors.New(`start consuming: Exception (404) Reason: "NOT_FOUND - no queue 'dompet.rollover'"`)
}

func (b *brokenRequests) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

func testLogger(buf *bytes.Buffer) *log.Logger {
	return log.New(log.Config{Component: log.ComponentWorker, Handler: slog.NewTextHandler(buf, nil)})
}

func TestRunOnce_LogsFailureAndContinues(t *testing.T) {
	var buf bytes.Buffer
	roller := &fakeRoller{err: errors.New("disk full")}
	w := NewRolloverWorker(roller, nil, time.Hour)

	res := w.RunOnce(log.WithLogger(context.Background(), testLogger(&buf)), log.TriggerCLI)
	assert.Equal(t, services.Failed, res.Status)
	assert.Contains(t, buf.String(), "Rollover failed")
	assert.Contains(t, buf.String(), "disk full")
}

func TestHandleRolloverRequest_AcksOnFailure(t *testing.T) {
	var buf bytes.Buffer
	roller := &fakeRoller{err: errors.New("locked")}
	w := NewRolloverWorker(roller, nil, time.Hour)

	err := w.HandleRolloverRequest(log.WithLogger(context.Background(), testLogger(&buf)), amqp.NewRolloverRequestMessage("cli"))
	assert.NoError(t, err)
	assert.Equal(t, 1, roller.count())
}

func TestStart_StartupTickAndRequests(t *testing.T) {
	var buf bytes.Buffer
	roller := &fakeRoller{ran: make(chan struct{}, 8)}
	requests := &fakeRequests{msgs: []*amqp.RolloverRequestMessage{amqp.NewRolloverRequestMessage("test")}}
	w := NewRolloverWorker(roller, requests, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(log.WithLogger(context.Background(), testLogger(&buf)))
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// startup, request and at least one tick
	for i := 0; i < 3; i++ {
		select {
		case <-roller.ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d rollover runs observed", i)
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.GreaterOrEqual(t, roller.count(), 3)
	assert.True(t, strings.Contains(buf.String(), "trigger="+log.TriggerStartup))
}

func TestStart_BrokenConsumerKeepsTicking(t *testing.T) {
	var buf syncBuffer
	roller := &fakeRoller{ran: make(chan struct{}, 16)}
	requests := &brokenRequests{}
	w := NewRolloverWorker(roller, requests, 10*time.Millisecond)
	w.retryDelay = 5 * time.Millisecond

	logger := log.New(log.Config{Component: log.ComponentWorker, Handler: slog.NewTextHandler(&buf, nil)})
	ctx, cancel := context.WithCancel(log.WithLogger(context.Background(), logger))
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// startup plus several ticks after the consumer has failed
	for i := 0; i < 5; i++ {
		select {
		case <-roller.ran:
		case err := <-done:
			t.Fatalf("worker stopped after %d runs: %v", i, err)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d rollover runs observed", i)
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.GreaterOrEqual(t, requests.count(), 1)
	assert.Contains(t, buf.String(), "Rollover request consumer stopped, retrying")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
