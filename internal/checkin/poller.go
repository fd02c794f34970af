package checkin

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultPollInterval is how often the agent's last scan is read
	DefaultPollInterval = 500 * time.Millisecond
	// DefaultScanTestTimeout bounds the scanner hardware test
	DefaultScanTestTimeout = 30 * time.Second
)

// ErrScanTimeout is returned when no code arrives in time
var ErrScanTimeout = errors.New("no scan received before timeout")

// ScanSource is the agent's scan buffer
type ScanSource interface {
	LastScan(ctx context.Context) (string, error)
	ClearScan(ctx context.Context) error
}

// Submitter accepts codes. *Controller satisfies it.
type Submitter interface {
	Accepting() bool
	SubmitCode(ctx context.Context, code string) (Result, error)
}

// Poller feeds hardware scanner codes into a Submitter. It reads the agent
// only while the submitter is accepting, so a dismissed result, manual or
// timed out, resumes polling on the next tick.
type Poller struct {
	Source   ScanSource
	Target   Submitter
	Interval time.Duration
	Logger   logrus.FieldLogger

	// OnError is called for agent errors; polling continues
	OnError func(error)
}

// Run polls until ctx is done
func (p *Poller) Run(ctx context.Context) error {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	log := p.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx, log)
		}
	}
}

func (p *Poller) poll(ctx context.Context, log logrus.FieldLogger) {
	if !p.Target.Accepting() {
		return
	}

	code, err := p.Source.LastScan(ctx)
	if err != nil {
		p.report(err)
		return
	}
	if code == "" {
		return
	}

	// Clear before submitting so the same code is never processed twice
	if err := p.Source.ClearScan(ctx); err != nil {
		p.report(err)
		return
	}

	if _, err := p.Target.SubmitCode(ctx, code); err != nil {
		log.WithError(err).WithField("code", code).Debug("Scan not processed")
	}
}

func (p *Poller) report(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if p.OnError != nil {
		p.OnError(err)
	}
}

// AwaitScan clears the scan buffer and waits for the next code. Used to
// test a scanner: returns ErrScanTimeout when nothing is scanned in time.
func AwaitScan(ctx context.Context, src ScanSource, interval, timeout time.Duration) (string, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultScanTestTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := src.ClearScan(ctx); err != nil {
		return "", err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", ErrScanTimeout
			}
			return "", ctx.Err()
		case <-ticker.C:
			code, err := src.LastScan(ctx)
			if err != nil || code == "" {
				continue
			}
			if err := src.ClearScan(ctx); err != nil {
				return "", err
			}
			return code, nil
		}
	}
}
