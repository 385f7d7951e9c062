package transcript

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMethod struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context) (Transcript, error)
}

func (f *fakeMethod) Name() string { return f.name }

func (f *fakeMethod) Fetch(ctx context.Context, _ string) (Transcript, error) {
	f.calls.Add(1)
	return f.fn(ctx)
}

func failing(name string) *fakeMethod {
	return &fakeMethod{name: name, fn: func(context.Context) (Transcript, error) {
		return nil, errors.New(name + " broke")
	}}
}

func empty(name string) *fakeMethod {
	return &fakeMethod{name: name, fn: func(context.Context) (Transcript, error) {
		return Transcript{}, nil
	}}
}

func returning(name string, t Transcript) *fakeMethod {
	return &fakeMethod{name: name, fn: func(context.Context) (Transcript, error) {
		return t, nil
	}}
}

func keepOrder([]Method) {}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delays)
}

func threeSegments() Transcript {
	return Transcript{
		{Text: "one", Start: 0, Duration: 1},
		{Text: "two", Start: 1, Duration: 1},
		{Text: "three", Start: 2, Duration: 1},
	}
}

func TestAcquireFallsThroughFailureAndEmpty(t *testing.T) {
	a, b, c := failing("a"), empty("b"), returning("c", threeSegments())
	rec := &sleepRecorder{}
	var outcomes []Outcome

	d := NewDriver(NewRegistry(a, b, c),
		WithShuffler(keepOrder),
		WithSleeper(rec.sleep),
		WithObserver(func(o Outcome) { outcomes = append(outcomes, o) }),
	)

	got, method, err := d.AcquireWithMethod(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, "c", method)
	assert.Equal(t, threeSegments(), got)
	assert.Equal(t, 2, rec.count())

	for _, m := range []*fakeMethod{a, b, c} {
		assert.EqualValues(t, 1, m.calls.Load(), m.name)
	}

	require.Len(t, outcomes, 3)
	assert.Equal(t, OutcomeFailed, outcomes[0].Kind)
	assert.Equal(t, OutcomeEmpty, outcomes[1].Kind)
	assert.ErrorIs(t, outcomes[1].Err, ErrEmptyTranscript)
	assert.Equal(t, OutcomeSuccess, outcomes[2].Kind)
}

func TestAcquireExhausted(t *testing.T) {
	a, b := failing("a"), empty("b")
	rec := &sleepRecorder{}

	d := NewDriver(NewRegistry(a, b), WithShuffler(keepOrder), WithSleeper(rec.sleep))

	got, err := d.Acquire(context.Background(), "vid")
	assert.Nil(t, got)
	require.ErrorIs(t, err, ErrAllMethodsExhausted)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, "vid", exhausted.VideoID)
	require.Len(t, exhausted.Failures, 2)
	assert.Equal(t, "a", exhausted.Failures[0].Method)
	assert.Equal(t, "b", exhausted.Failures[1].Method)
	assert.ErrorIs(t, exhausted.Failures[1], ErrEmptyTranscript)
	assert.Contains(t, err.Error(), "a broke")

	// One delay between the two attempts, none after the last.
	assert.Equal(t, 1, rec.count())
}

func TestAcquireStopsAtFirstSuccess(t *testing.T) {
	a, b := returning("a", threeSegments()), failing("b")
	rec := &sleepRecorder{}

	d := NewDriver(NewRegistry(a, b), WithShuffler(keepOrder), WithSleeper(rec.sleep))

	got, err := d.Acquire(context.Background(), "vid")
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.EqualValues(t, 0, b.calls.Load())
	assert.Zero(t, rec.count())
}

func TestAcquireAttemptsEachMethodOnce(t *testing.T) {
	methods := []*fakeMethod{failing("a"), failing("b"), failing("c"), failing("d"), failing("e")}
	registry := NewRegistry(methods[0], methods[1], methods[2], methods[3], methods[4])
	rec := &sleepRecorder{}

	d := NewDriver(registry, WithSleeper(rec.sleep))

	_, err := d.Acquire(context.Background(), "vid")
	require.ErrorIs(t, err, ErrAllMethodsExhausted)
	for _, m := range methods {
		assert.EqualValues(t, 1, m.calls.Load(), m.name)
	}
	assert.Equal(t, 4, rec.count())

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Len(t, exhausted.Failures, 5)
}

func TestAcquireFirstPositionIsUniform(t *testing.T) {
	const runs = 5000
	names := []string{"direct", "proxy", "browser", "relay", "headers"}
	methods := make([]Method, len(names))
	for i, name := range names {
		methods[i] = returning(name, threeSegments())
	}

	d := NewDriver(NewRegistry(methods...), WithSleeper(func(context.Context, time.Duration) error { return nil }))

	counts := map[string]int{}
	for range runs {
		_, method, err := d.AcquireWithMethod(context.Background(), "vid")
		require.NoError(t, err)
		counts[method]++
	}

	expected := runs / len(names)
	for _, name := range names {
		assert.InDelta(t, expected, counts[name], float64(expected)*0.15, "method %s chosen first %d times", name, counts[name])
	}
}

func TestAcquireDelaysWithinRange(t *testing.T) {
	rec := &sleepRecorder{}
	d := NewDriver(NewRegistry(failing("a"), failing("b"), failing("c")),
		WithShuffler(keepOrder),
		WithSleeper(rec.sleep),
		WithDelay(time.Second, 3*time.Second),
	)

	_, err := d.Acquire(context.Background(), "vid")
	require.Error(t, err)
	require.Len(t, rec.delays, 2)
	for _, delay := range rec.delays {
		assert.GreaterOrEqual(t, delay, time.Second)
		assert.LessOrEqual(t, delay, 3*time.Second)
	}
}

func TestAcquireMethodTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	honours := &fakeMethod{name: "slow", fn: func(ctx context.Context) (Transcript, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	ignores := &fakeMethod{name: "stuck", fn: func(context.Context) (Transcript, error) {
		<-release
		return nil, nil
	}}
	ok := returning("ok", threeSegments())

	var outcomes []Outcome
	d := NewDriver(NewRegistry(honours, ignores, ok),
		WithShuffler(keepOrder),
		WithSleeper(func(context.Context, time.Duration) error { return nil }),
		WithMethodTimeout(20*time.Millisecond),
		WithObserver(func(o Outcome) { outcomes = append(outcomes, o) }),
	)

	got, err := d.Acquire(context.Background(), "vid")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	require.Len(t, outcomes, 3)
	for _, o := range outcomes[:2] {
		assert.Equal(t, OutcomeTimeout, o.Kind, o.Method)
		assert.ErrorIs(t, o.Err, ErrMethodTimeout)
	}
}

func TestAcquireRecoversPanics(t *testing.T) {
	boom := &fakeMethod{name: "boom", fn: func(context.Context) (Transcript, error) {
		panic("nil map")
	}}
	ok := returning("ok", threeSegments())

	var outcomes []Outcome
	d := NewDriver(NewRegistry(boom, ok),
		WithShuffler(keepOrder),
		WithSleeper(func(context.Context, time.Duration) error { return nil }),
		WithObserver(func(o Outcome) { outcomes = append(outcomes, o) }),
	)

	_, err := d.Acquire(context.Background(), "vid")
	require.NoError(t, err)
	require.Len(t, outcomes, 2)
	assert.ErrorIs(t, outcomes[0].Err, ErrMethodPanic)
}

func TestAcquireCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b := failing("a"), returning("b", threeSegments())
	d := NewDriver(NewRegistry(a, b),
		WithShuffler(keepOrder),
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			cancel()
			return SleepContext(ctx, d)
		}),
	)

	_, err := d.Acquire(ctx, "vid")
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAllMethodsExhausted)
	assert.EqualValues(t, 0, b.calls.Load())
}

func TestAcquireCancelledDuringMethod(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &fakeMethod{name: "a", fn: func(ctx context.Context) (Transcript, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	b := returning("b", threeSegments())
	d := NewDriver(NewRegistry(a, b), WithShuffler(keepOrder))

	_, err := d.Acquire(ctx, "vid")
	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, b.calls.Load())
}

func TestAcquireAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := returning("a", threeSegments())
	_, err := NewDriver(NewRegistry(a)).Acquire(ctx, "vid")
	require.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, a.calls.Load())
}

func TestAcquireEmptyRegistry(t *testing.T) {
	_, err := NewDriver(NewRegistry()).Acquire(context.Background(), "vid")
	require.ErrorIs(t, err, ErrAllMethodsExhausted)
}

func TestAcquireNormalizesResult(t *testing.T) {
	m := returning("m", Transcript{
		{Text: "  later ", Start: 5},
		{Text: "   ", Start: 1},
		{Text: "first", Start: -2},
	})
	got, err := NewDriver(NewRegistry(m)).Acquire(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, Transcript{{Text: "first", Start: 0}, {Text: "later", Start: 5}}, got)
}

func TestUniformDelay(t *testing.T) {
	draw := UniformDelay(10*time.Millisecond, 20*time.Millisecond)
	for range 1000 {
		d := draw()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 20*time.Millisecond)
	}
	assert.Equal(t, time.Second, UniformDelay(time.Second, time.Second)())
}

func TestSleepContext(t *testing.T) {
	require.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	require.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAwaitResultPrefersDeliveredTranscript(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-expired.Done()

	for range 100 {
		done := make(chan fetchResult, 1)
		done <- fetchResult{transcript: Transcript{{Text: "on time", Start: 0}}}

		res := awaitResult(expired, done)
		require.NoError(t, res.err)
		require.Len(t, res.transcript, 1)
	}
}

func TestAwaitResultTimesOutWithoutResult(t *testing.T) {
	expired, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()

	res := awaitResult(expired, make(chan fetchResult, 1))
	assert.ErrorIs(t, res.err, context.DeadlineExceeded)
	assert.Nil(t, res.transcript)
}
