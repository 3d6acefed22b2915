// Package arbiter grants exclusive, non-queued ownership of shared
// actuators such as the rover's pan servo.
//
// Acquire never waits: a second caller gets ErrBusy immediately, so a
// request to scan while face tracking is running fails fast instead of
// hanging. Ownership is represented by a *Token whose Release is idempotent;
// callers pair Acquire with defer tok.Release().
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBusy is returned when the actuator is already held.
var ErrBusy = errors.New("arbiter: actuator busy")

// pollInterval is how often AcquireWithin retries while waiting.
const pollInterval = 20 * time.Millisecond

// noCopy makes go vet's copylocks check flag copies of a Token.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Token is proof of exclusive ownership of one actuator.
// Always handle it by pointer; Release may be called any number of times.
type Token struct {
	_ noCopy

	id       string
	actuator string
	owner    string
	acquired time.Time

	arbiter *Arbiter
	once    sync.Once
}

// ID returns the unique token identifier (for logs).
func (t *Token) ID() string { return t.id }

// Actuator returns the actuator this token owns.
func (t *Token) Actuator() string { return t.actuator }

// Owner returns the name the token was acquired under.
func (t *Token) Owner() string { return t.owner }

// Release gives up ownership. Safe to call more than once and on nil.
func (t *Token) Release() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.arbiter.release(t)
	})
}

// Holder describes the current owner of an actuator.
type Holder struct {
	Actuator string        `json:"actuator"`
	Owner    string        `json:"owner"`
	TokenID  string        `json:"token_id"`
	HeldFor  time.Duration `json:"held_for"`
}

// Arbiter tracks ownership of named actuators.
// The zero value is not usable; call New.
type Arbiter struct {
	mu     sync.Mutex
	held   map[string]*Token
	logger *slog.Logger
}

// New creates an arbiter. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Arbiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Arbiter{
		held:   make(map[string]*Token),
		logger: logger,
	}
}

// Acquire takes ownership of actuator for owner without waiting.
// It returns ErrBusy if another token currently holds it.
func (a *Arbiter) Acquire(actuator, owner string) (*Token, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if cur, ok := a.held[actuator]; ok {
		return nil, fmt.Errorf("%w: %s held by %s", ErrBusy, actuator, cur.owner)
	}

	tok := &Token{
		id:       uuid.NewString(),
		actuator: actuator,
		owner:    owner,
		acquired: time.Now(),
		arbiter:  a,
	}
	a.held[actuator] = tok
	a.logger.Debug("actuator acquired", "actuator", actuator, "owner", owner, "token", tok.id)
	return tok, nil
}

// AcquireWithin retries Acquire until it succeeds, timeout elapses or ctx
// is done. It is meant for best-effort cleanup such as recentering a servo
// on shutdown, never for normal control flow.
func (a *Arbiter) AcquireWithin(ctx context.Context, actuator, owner string, timeout time.Duration) (*Token, error) {
	tok, err := a.Acquire(actuator, owner)
	if err == nil || timeout <= 0 {
		return tok, err
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, err
		case <-ticker.C:
			if tok, err = a.Acquire(actuator, owner); err == nil {
				return tok, nil
			}
		}
	}
}

// Do runs fn while holding actuator. It fails fast with ErrBusy like
// Acquire and releases the token even if fn panics.
func (a *Arbiter) Do(actuator, owner string, fn func() error) error {
	tok, err := a.Acquire(actuator, owner)
	if err != nil {
		return err
	}
	defer tok.Release()
	return fn()
}

// Held reports who holds actuator, if anyone.
func (a *Arbiter) Held(actuator string) (Holder, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tok, ok := a.held[actuator]
	if !ok {
		return Holder{}, false
	}
	return Holder{
		Actuator: actuator,
		Owner:    tok.owner,
		TokenID:  tok.id,
		HeldFor:  time.Since(tok.acquired),
	}, true
}

func (a *Arbiter) release(t *Token) {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Only the current token may clear the slot
	if cur, ok := a.held[t.actuator]; ok && cur == t {
		delete(a.held, t.actuator)
		a.logger.Debug("actuator released", "actuator", t.actuator, "owner", t.owner,
			"token", t.id, "held_for", time.Since(t.acquired))
	}
}
