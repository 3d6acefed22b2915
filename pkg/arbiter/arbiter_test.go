package arbiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
)

func TestAcquire_ExclusiveAndNonBlocking(t *testing.T) {
	a := New(log.Discard())

	tok, err := a.Acquire("pan", "scan")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer tok.Release()

	start := time.Now()
	_, err = a.Acquire("pan", "tracker")
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("second acquire: got %v, want ErrBusy", err)
	}
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Errorf("busy acquire took %v, expected immediate failure", elapsed)
	}

	// A different actuator is independent
	other, err := a.Acquire("tilt", "tracker")
	if err != nil {
		t.Fatalf("independent actuator: %v", err)
	}
	other.Release()
}

func TestRelease_Idempotent(t *testing.T) {
	a := New(log.Discard())

	tok, err := a.Acquire("pan", "scan")
	if err != nil {
		t.Fatal(err)
	}
	tok.Release()
	tok.Release()

	next, err := a.Acquire("pan", "follower")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}

	// A stale token releasing again must not free the new holder
	tok.Release()
	if h, ok := a.Held("pan"); !ok || h.Owner != "follower" {
		t.Errorf("holder after stale release: got %+v, %v", h, ok)
	}
	next.Release()

	var nilTok *Token
	nilTok.Release()
}

func TestRelease_OnPanicPath(t *testing.T) {
	a := New(log.Discard())

	func() {
		defer func() { _ = recover() }()
		tok, err := a.Acquire("pan", "scan")
		if err != nil {
			t.Fatal(err)
		}
		defer tok.Release()
		panic("mid-scan failure")
	}()

	if _, held := a.Held("pan"); held {
		t.Error("token not released after panic")
	}
}

func TestAcquire_ConcurrentExactlyOneWins(t *testing.T) {
	owners := []string{"scan", "tracker", "follower"}

	for round := 0; round < 200; round++ {
		a := New(log.Discard())

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			wins   int
			busy   int
			tokens []*Token
		)

		for _, owner := range owners {
			wg.Add(1)
			go func(owner string) {
				defer wg.Done()
				tok, err := a.Acquire("pan", owner)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
					tokens = append(tokens, tok)
				case errors.Is(err, ErrBusy):
					busy++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(owner)
		}
		wg.Wait()

		if wins != 1 || busy != 2 {
			t.Fatalf("round %d: wins=%d busy=%d, want 1 and 2", round, wins, busy)
		}
		for _, tok := range tokens {
			tok.Release()
		}
	}
}

func TestAcquireWithin_WaitsForRelease(t *testing.T) {
	a := New(log.Discard())
	tok, _ := a.Acquire("pan", "tracker")

	go func() {
		time.Sleep(40 * time.Millisecond)
		tok.Release()
	}()

	got, err := a.AcquireWithin(context.Background(), "pan", "follower", time.Second)
	if err != nil {
		t.Fatalf("AcquireWithin: %v", err)
	}
	if got.Owner() != "follower" || got.Actuator() != "pan" || got.ID() == "" {
		t.Errorf("unexpected token: owner=%s actuator=%s id=%s", got.Owner(), got.Actuator(), got.ID())
	}
	got.Release()
}

func TestAcquireWithin_TimesOut(t *testing.T) {
	a := New(log.Discard())
	tok, _ := a.Acquire("pan", "tracker")
	defer tok.Release()

	start := time.Now()
	_, err := a.AcquireWithin(context.Background(), "pan", "follower", 60*time.Millisecond)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("got %v, want ErrBusy", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond || elapsed > time.Second {
		t.Errorf("timeout elapsed %v, want ~60ms", elapsed)
	}
}

func TestAcquireWithin_Cancelled(t *testing.T) {
	a := New(log.Discard())
	tok, _ := a.Acquire("pan", "tracker")
	defer tok.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.AcquireWithin(ctx, "pan", "follower", time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

func TestHeld(t *testing.T) {
	a := New(nil)
	if _, ok := a.Held("pan"); ok {
		t.Error("fresh arbiter reports holder")
	}
	tok, _ := a.Acquire("pan", "scan")
	h, ok := a.Held("pan")
	if !ok || h.Owner != "scan" || h.TokenID != tok.ID() {
		t.Errorf("Held: got %+v, %v", h, ok)
	}
	tok.Release()
}

func TestDo(t *testing.T) {
	a := New(nil)

	ran := false
	if err := a.Do("pan", "manual", func() error {
		ran = true
		if err := a.Do("pan", "other", func() error { return nil }); !errors.Is(err, ErrBusy) {
			t.Errorf("nested Do: got %v, want ErrBusy", err)
		}
		return nil
	}); err != nil || !ran {
		t.Fatalf("Do: err=%v ran=%v", err, ran)
	}
	if _, ok := a.Held("pan"); ok {
		t.Error("token not released after Do")
	}

	want := errors.New("servo jammed")
	if err := a.Do("pan", "manual", func() error { return want }); !errors.Is(err, want) {
		t.Errorf("Do: got %v, want %v", err, want)
	}
}
