package checkin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScanner struct {
	mu       sync.Mutex
	pending  string
	ops      []string
	clearErr error
}

func (s *fakeScanner) scan(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = code
}

func (s *fakeScanner) LastScan(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "last")
	return s.pending, nil
}

func (s *fakeScanner) ClearScan(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "clear")
	if s.clearErr != nil {
		return s.clearErr
	}
	s.pending = ""
	return nil
}

func (s *fakeScanner) opsSnapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

type fakeSubmitter struct {
	mu        sync.Mutex
	accepting bool
	codes     []string
	order     *fakeScanner
}

func (f *fakeSubmitter) Accepting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepting
}

func (f *fakeSubmitter) SubmitCode(ctx context.Context, code string) (Result, error) {
	if f.order != nil {
		f.order.mu.Lock()
		f.order.ops = append(f.order.ops, "submit")
		f.order.mu.Unlock()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	return Result{Status: StatusSuccess}, nil
}

func (f *fakeSubmitter) submitted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.codes...)
}

func TestPoller_ClearsBeforeSubmit(t *testing.T) {
	src := &fakeScanner{}
	target := &fakeSubmitter{accepting: true, order: src}
	p := &Poller{Source: src, Target: target, Logger: quietLogger()}

	src.scan("ABC1")
	p.poll(context.Background(), p.Logger)

	assert.Equal(t, []string{"last", "clear", "submit"}, src.opsSnapshot())
	assert.Equal(t, []string{"ABC1"}, target.submitted())

	// the buffer is empty now, so the next tick submits nothing
	p.poll(context.Background(), p.Logger)
	assert.Equal(t, []string{"ABC1"}, target.submitted())
}

func TestPoller_SkipsWhenNotAccepting(t *testing.T) {
	src := &fakeScanner{}
	target := &fakeSubmitter{accepting: false}
	p := &Poller{Source: src, Target: target, Logger: quietLogger()}

	src.scan("ABC1")
	p.poll(context.Background(), p.Logger)

	assert.Empty(t, src.opsSnapshot())
	assert.Empty(t, target.submitted())
}

func TestPoller_ClearFailureSkipsSubmit(t *testing.T) {
	src := &fakeScanner{clearErr: errors.New("agent offline")}
	target := &fakeSubmitter{accepting: true}

	var reported []error
	p := &Poller{
		Source:  src,
		Target:  target,
		Logger:  quietLogger(),
		OnError: func(err error) { reported = append(reported, err) },
	}

	src.scan("ABC1")
	p.poll(context.Background(), p.Logger)

	assert.Empty(t, target.submitted())
	require.Len(t, reported, 1)
	assert.EqualError(t, reported[0], "agent offline")
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	src := &fakeScanner{}
	target := &fakeSubmitter{accepting: true}
	p := &Poller{Source: src, Target: target, Interval: time.Millisecond, Logger: quietLogger()}

	src.scan("XYZ")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(target.submitted()) == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, []string{"XYZ"}, target.submitted())
}

func TestAwaitScan(t *testing.T) {
	src := &fakeScanner{pending: "stale"}

	go func() {
		for len(src.opsSnapshot()) == 0 {
			time.Sleep(time.Millisecond)
		}
		src.scan("FRESH")
	}()

	code, err := AwaitScan(context.Background(), src, time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "FRESH", code)
	assert.Equal(t, "clear", src.opsSnapshot()[0])
}

func TestAwaitScan_Timeout(t *testing.T) {
	src := &fakeScanner{}

	_, err := AwaitScan(context.Background(), src, time.Millisecond, 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrScanTimeout)
}
