// Package idempotency guards side effects that may be triggered more than once,
// such as a message redelivered by a broker.
//
// State is kept in redis under a caller-supplied key: the first caller wins a
// short lock, runs the operation, and records whether it completed or failed.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrAlreadyInProgress = errors.New("operation already in progress")
	ErrAlreadyCompleted  = errors.New("operation already completed")
	ErrAlreadyFailed     = errors.New("operation already failed")
	ErrInvalidState      = errors.New("invalid idempotency state")
)

// State is the recorded outcome for a key.
type State string

const (
	StateNone       State = "none"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var stateErrors = map[State]error{
	StateInProgress: ErrAlreadyInProgress,
	StateCompleted:  ErrAlreadyCompleted,
	StateFailed:     ErrAlreadyFailed,
}

// Idempotency runs fn at most once per key within the configured windows.
type Idempotency interface {
	Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error
}

const (
	defaultLockDuration = time.Minute
	defaultStateTTL     = 24 * time.Hour
)

// Option tunes a single Exec call.
type Option func(*execOptions)

type execOptions struct {
	lockDuration time.Duration
	stateTTL     time.Duration
	retryFailed  bool
}

// WithLockDuration bounds how long an in-progress marker survives a crashed worker.
func WithLockDuration(d time.Duration) Option {
	return func(o *execOptions) { o.lockDuration = d }
}

// WithStateTTL sets how long the completed or failed outcome is remembered.
func WithStateTTL(d time.Duration) Option {
	return func(o *execOptions) { o.stateTTL = d }
}

// WithRetryFailed lets a key whose previous run failed be executed again.
func WithRetryFailed() Option {
	return func(o *execOptions) { o.retryFailed = true }
}

// StateTracker implements Idempotency on redis.
type StateTracker struct {
	client redis.UniversalClient
	prefix string
}

// New returns a StateTracker storing keys under "idempotency:".
func New(client redis.UniversalClient) *StateTracker {
	return &StateTracker{client: client, prefix: "idempotency:"}
}

// acquire sets the in-progress marker when the key is free and otherwise
// reports the recorded state.
func (s *StateTracker) acquire(ctx context.Context, key string, lock time.Duration, retryFailed bool) (State, error) {
	fk := s.prefix + key

	for range 2 {
		ok, err := s.client.SetNX(ctx, fk, string(StateInProgress), lock).Result()
		if err != nil {
			return "", err
		}
		if ok {
			return StateNone, nil
		}

		current, err := s.client.Get(ctx, fk).Result()
		if errors.Is(err, redis.Nil) {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return "", err
		}

		st := State(current)
		if st == StateFailed && retryFailed {
			swapped, err := s.client.SetArgs(ctx, fk, string(StateInProgress), redis.SetArgs{
				Mode: "XX",
				TTL:  lock,
				Get:  true,
			}).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return "", err
			}
			if State(swapped) == StateFailed {
				return StateNone, nil
			}
			continue
		}

		if _, known := stateErrors[st]; !known {
			return "", ErrInvalidState
		}
		return st, nil
	}

	return "", ErrInvalidState
}

func (s *StateTracker) mark(ctx context.Context, key string, st State, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, string(st), ttl).Err()
}

// Exec runs fn unless key already has a recorded state, in which case the
// matching ErrAlready* error is returned without calling fn.
func (s *StateTracker) Exec(ctx context.Context, key string, fn func(context.Context) error, opts ...Option) error {
	o := &execOptions{lockDuration: defaultLockDuration, stateTTL: defaultStateTTL}
	for _, opt := range opts {
		opt(o)
	}
	if o.lockDuration <= 0 {
		o.lockDuration = defaultLockDuration
	}
	if o.stateTTL <= 0 {
		o.stateTTL = defaultStateTTL
	}

	state, err := s.acquire(ctx, key, o.lockDuration, o.retryFailed)
	if err != nil {
		return err
	}
	if err := stateErrors[state]; err != nil {
		return err
	}

	if err := fn(ctx); err != nil {
		return errors.Join(err, s.mark(ctx, key, StateFailed, o.stateTTL))
	}

	return s.mark(ctx, key, StateCompleted, o.stateTTL)
}
