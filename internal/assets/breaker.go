package assets

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// BreakerState is the position of a Breaker.
type BreakerState int

const (
	// StateClosed passes calls through.
	StateClosed BreakerState = iota
	// StateOpen fails calls fast with ErrStorageUnavailable.
	StateOpen
	// StateHalfOpen lets one probe call through.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is wrapped into ErrStorageUnavailable while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

var errCircuitOpen = fmt.Errorf("%w: %w", ErrStorageUnavailable, ErrCircuitOpen)

// Breaker wraps a remote Store and stops calling it after consecutive
// backend failures, so a dead S3 endpoint costs one fast error per request
// instead of a full timeout. Client mistakes (unknown or invalid ids, empty
// payloads) never count as failures.
type Breaker struct {
	next Store

	mu          sync.Mutex
	maxFailures int
	timeout     time.Duration
	now         func() time.Time

	state       BreakerState
	failures    int
	openedAt    time.Time
	probeActive bool
}

// NewBreaker opens after maxFailures consecutive failures and probes again
// after timeout.
func NewBreaker(next Store, maxFailures int, timeout time.Duration) *Breaker {
	return &Breaker{
		next:        next,
		maxFailures: maxFailures,
		timeout:     timeout,
		now:         time.Now,
	}
}

// State reports the breaker position.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Initialize(ctx context.Context) error {
	return b.do(func() error { return b.next.Initialize(ctx) })
}

func (b *Breaker) Put(ctx context.Context, payload []byte, originalName string) (Asset, error) {
	var a Asset
	err := b.do(func() (err error) {
		a, err = b.next.Put(ctx, payload, originalName)
		return err
	})
	return a, err
}

func (b *Breaker) List(ctx context.Context) ([]Asset, error) {
	var list []Asset
	err := b.do(func() (err error) {
		list, err = b.next.List(ctx)
		return err
	})
	return list, err
}

func (b *Breaker) Delete(ctx context.Context, id string) error {
	return b.do(func() error { return b.next.Delete(ctx, id) })
}

func (b *Breaker) Open(ctx context.Context, id string) (*Blob, error) {
	var blob *Blob
	err := b.do(func() (err error) {
		blob, err = b.next.Open(ctx, id)
		return err
	})
	return blob, err
}

func (b *Breaker) do(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			return errCircuitOpen
		}
		b.state = StateHalfOpen
		b.probeActive = true
	case StateHalfOpen:
		if b.probeActive {
			return errCircuitOpen
		}
		b.probeActive = true
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.probeActive = false
	}

	if !countsAsFailure(err) {
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

func countsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPathTraversal),
		errors.Is(err, ErrNoPayload),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
