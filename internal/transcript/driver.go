package transcript

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultDelayMin      = 1 * time.Second
	DefaultDelayMax      = 3 * time.Second
	DefaultMethodTimeout = 60 * time.Second
)

// Shuffler permutes methods in place.
type Shuffler func([]Method)

// Sleeper pauses for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// UniformShuffle is a Fisher-Yates shuffle: every permutation is equally likely.
func UniformShuffle(methods []Method) {
	rand.Shuffle(len(methods), func(i, j int) {
		methods[i], methods[j] = methods[j], methods[i]
	})
}

// SleepContext waits for d unless ctx is cancelled first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UniformDelay returns a jitter function drawing from [lo, hi].
func UniformDelay(lo, hi time.Duration) func() time.Duration {
	return func() time.Duration {
		if hi <= lo {
			return lo
		}
		return lo + rand.N(hi-lo+1)
	}
}

// Driver tries the registry's methods in random order until one yields a transcript.
type Driver struct {
	registry *Registry
	shuffle  Shuffler
	sleep    Sleeper
	jitter   func() time.Duration
	timeout  time.Duration
	log      logrus.FieldLogger
	observe  func(Outcome)
}

// DriverOption customizes a Driver.
type DriverOption func(*Driver)

// WithShuffler replaces the permutation function.
func WithShuffler(s Shuffler) DriverOption {
	return func(d *Driver) { d.shuffle = s }
}

// WithSleeper replaces the delay implementation.
func WithSleeper(s Sleeper) DriverOption {
	return func(d *Driver) { d.sleep = s }
}

// WithDelay sets the politeness delay range.
func WithDelay(lo, hi time.Duration) DriverOption {
	return func(d *Driver) { d.jitter = UniformDelay(lo, hi) }
}

// WithJitter replaces the delay draw.
func WithJitter(f func() time.Duration) DriverOption {
	return func(d *Driver) { d.jitter = f }
}

// WithMethodTimeout bounds each method call. Zero disables the bound.
func WithMethodTimeout(timeout time.Duration) DriverOption {
	return func(d *Driver) { d.timeout = timeout }
}

// WithLogger sets the logger used for method failures.
func WithLogger(log logrus.FieldLogger) DriverOption {
	return func(d *Driver) { d.log = log }
}

// WithObserver registers a callback invoked after every attempt.
func WithObserver(f func(Outcome)) DriverOption {
	return func(d *Driver) { d.observe = f }
}

// NewDriver creates a driver over the registry.
func NewDriver(registry *Registry, options ...DriverOption) *Driver {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	d := &Driver{
		registry: registry,
		shuffle:  UniformShuffle,
		sleep:    SleepContext,
		jitter:   UniformDelay(DefaultDelayMin, DefaultDelayMax),
		timeout:  DefaultMethodTimeout,
		log:      log,
	}
	for _, option := range options {
		option(d)
	}
	return d
}

// Registry returns the registry the driver draws from.
func (d *Driver) Registry() *Registry { return d.registry }

// Acquire returns the first non-empty transcript produced by the shuffled
// methods. When every method fails it returns an *ExhaustedError.
func (d *Driver) Acquire(ctx context.Context, videoID string) (Transcript, error) {
	t, _, err := d.AcquireWithMethod(ctx, videoID)
	return t, err
}

// AcquireWithMethod is Acquire that also reports which method succeeded.
func (d *Driver) AcquireWithMethod(ctx context.Context, videoID string) (Transcript, string, error) {
	methods := d.registry.Methods()
	d.shuffle(methods)

	exhausted := &ExhaustedError{VideoID: videoID}
	for i, m := range methods {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		outcome := d.attempt(ctx, m, videoID)
		if d.observe != nil {
			d.observe(outcome)
		}
		if outcome.OK() {
			d.log.WithFields(logrus.Fields{
				"method":   outcome.Method,
				"video":    videoID,
				"segments": len(outcome.Transcript),
				"elapsed":  outcome.Elapsed,
			}).Debug("transcript method succeeded")
			return outcome.Transcript, outcome.Method, nil
		}

		// The caller gave up; this is not a method failure.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}

		d.log.WithFields(logrus.Fields{
			"method":  outcome.Method,
			"video":   videoID,
			"outcome": outcome.Kind.String(),
			"elapsed": outcome.Elapsed,
		}).WithError(outcome.Err).Warn("transcript method failed")
		exhausted.Failures = append(exhausted.Failures, MethodFailure{
			Method: outcome.Method,
			Kind:   outcome.Kind,
			Err:    outcome.Err,
		})

		if i < len(methods)-1 {
			if err := d.sleep(ctx, d.jitter()); err != nil {
				return nil, "", err
			}
		}
	}

	return nil, "", exhausted
}

type fetchResult struct {
	transcript Transcript
	err        error
}

// attempt runs one method under the per-method timeout and classifies the result.
// awaitResult waits for the method or its context. A result that is already
// delivered wins over an expired context.
func awaitResult(ctx context.Context, done <-chan fetchResult) fetchResult {
	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		select {
		case res := <-done:
			return res
		default:
			// A method that ignores its context is abandoned here.
			return fetchResult{err: ctx.Err()}
		}
	}
}

func (d *Driver) attempt(ctx context.Context, m Method, videoID string) Outcome {
	started := time.Now()
	outcome := Outcome{Method: m.Name()}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	defer cancel()

	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("%w: %v", ErrMethodPanic, r)}
			}
		}()
		t, err := m.Fetch(callCtx, videoID)
		done <- fetchResult{transcript: t, err: err}
	}()

	res := awaitResult(callCtx, done)
	outcome.Elapsed = time.Since(started)

	switch {
	case res.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		outcome.Kind = OutcomeTimeout
		outcome.Err = fmt.Errorf("%w after %s: %v", ErrMethodTimeout, d.timeout, res.err)
	case res.err != nil:
		outcome.Kind = OutcomeFailed
		outcome.Err = res.err
	default:
		t := res.transcript.Normalize()
		if len(t) == 0 {
			outcome.Kind = OutcomeEmpty
			outcome.Err = ErrEmptyTranscript
			return outcome
		}
		outcome.Kind = OutcomeSuccess
		outcome.Transcript = t
	}
	return outcome
}
