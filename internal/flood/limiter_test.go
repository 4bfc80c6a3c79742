package flood

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"roomwarden/internal/store"
)

func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	s, err := store.NewMemoryStore(100)
	if err != nil {
		t.Fatalf("NewMemoryStore() error: %v", err)
	}
	return New(s, zap.NewNop())
}

func TestLimiter_Check_FirstMessage(t *testing.T) {
	l := newTestLimiter(t)

	res, err := l.Check(context.Background(), "@alice:example.org", "hello")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if res.Repeat {
		t.Error("First message should not be a repeat")
	}
	if res.Count != 1 {
		t.Errorf("Expected count 1, got %d", res.Count)
	}
}

func TestLimiter_Check_CountsIdenticalRun(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	sender := "@alice:example.org"

	// Message i of an identical run reports count i, provided the policy
	// confirms each counted repeat.
	for i := 1; i <= 5; i++ {
		res, err := l.Check(ctx, sender, "hi")
		if err != nil {
			t.Fatalf("Check() error on message %d: %v", i, err)
		}
		if i == 1 && res.Repeat {
			t.Error("Message 1 should not be a repeat")
		}
		if i > 1 && !res.Repeat {
			t.Errorf("Message %d should be a repeat", i)
		}
		if res.Count != int64(i) {
			t.Errorf("Message %d reported count %d", i, res.Count)
		}
		if res.Repeat {
			if err := l.Confirm(ctx, sender); err != nil {
				t.Fatalf("Confirm() error: %v", err)
			}
		}
	}
}

func TestLimiter_Check_DifferentMessageResets(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	sender := "@alice:example.org"

	l.Check(ctx, sender, "hi")
	l.Check(ctx, sender, "hi")
	l.Confirm(ctx, sender)

	res, err := l.Check(ctx, sender, "something else")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if res.Repeat {
		t.Error("Differing message should not be a repeat")
	}
	if res.Count != 1 {
		t.Errorf("Differing message should reset count to 1, got %d", res.Count)
	}

	// The old body starts a fresh run too.
	res, _ = l.Check(ctx, sender, "hi")
	if res.Repeat {
		t.Error("Old body after reset should not be a repeat")
	}
}

func TestLimiter_Clear(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	sender := "@alice:example.org"

	l.Check(ctx, sender, "hi")
	l.Check(ctx, sender, "hi")
	l.Confirm(ctx, sender)

	if err := l.Clear(ctx, sender); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}

	res, err := l.Check(ctx, sender, "hi")
	if err != nil {
		t.Fatalf("Check() error: %v", err)
	}
	if res.Repeat || res.Count != 1 {
		t.Errorf("Cleared sender should look fresh, got repeat=%v count=%d", res.Repeat, res.Count)
	}
}

func TestLimiter_IndependentSenders(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()

	l.Check(ctx, "@alice:example.org", "hi")
	res, _ := l.Check(ctx, "@bob:example.org", "hi")
	if res.Repeat {
		t.Error("Different senders must not share records")
	}
}

type failingStore struct{}

func (failingStore) Observe(context.Context, string, string) (bool, int64, error) {
	return false, 0, &store.StoreError{Op: "observe", Err: errors.New("connection refused")}
}
func (failingStore) Increment(context.Context, string) (int64, error) {
	return 0, &store.StoreError{Op: "increment", Err: errors.New("connection refused")}
}
func (failingStore) Delete(context.Context, string) error {
	return &store.StoreError{Op: "delete", Err: errors.New("connection refused")}
}
func (failingStore) Close() error { return nil }

func TestLimiter_Check_StoreErrorSurfaces(t *testing.T) {
	l := New(failingStore{}, zap.NewNop())

	_, err := l.Check(context.Background(), "sender", "hi")
	var storeErr *store.StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("Expected StoreError, got %v", err)
	}
}

func TestFingerprint_Deterministic(t *testing.T) {
	if Fingerprint("hello") != Fingerprint("hello") {
		t.Error("Fingerprint must be deterministic")
	}
	if Fingerprint("hello") == Fingerprint("hello ") {
		t.Error("Distinct bodies must not collide")
	}
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("sender")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 20 {
		t.Errorf("Expected 20 increments, got %d", counter)
	}
	if km.Len() != 0 {
		t.Errorf("Expected no tracked keys after release, got %d", km.Len())
	}
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := NewKeyedMutex()

	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()

	// Locking "b" must not wait on "a".
	<-done
	unlockA()

	if km.Len() != 0 {
		t.Errorf("Expected no tracked keys after release, got %d", km.Len())
	}
}
