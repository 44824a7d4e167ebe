package guard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithTimeoutFastOperationWins(t *testing.T) {
	got, err := WithTimeout(context.Background(), func(ctx context.Context) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return "done", nil
	}, 200*time.Millisecond, "fast")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "done" {
		t.Errorf("got %q, want done", got)
	}
}

func TestWithTimeoutOperationErrorPassesThrough(t *testing.T) {
	boom := errors.New("backend unavailable")
	_, err := WithTimeout(context.Background(), func(ctx context.Context) (int, error) {
		return 0, boom
	}, 100*time.Millisecond, "failing")
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the operation's own failure", err)
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		t.Error("operation failure misclassified as TimeoutError")
	}
}

func TestWithTimeoutSlowOperationTimesOut(t *testing.T) {
	start := time.Now()
	_, err := WithTimeout(context.Background(), func(ctx context.Context) (string, error) {
		time.Sleep(2 * time.Second)
		return "late", nil
	}, 50*time.Millisecond, "slow-op")

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TimeoutError", err)
	}
	if te.Operation != "slow-op" {
		t.Errorf("Operation = %q, want slow-op", te.Operation)
	}
	if te.Timeout != 50*time.Millisecond {
		t.Errorf("Timeout = %v, want 50ms", te.Timeout)
	}
	if !te.Retryable() {
		t.Error("TimeoutError must be retryable")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WithTimeout waited %v, should have returned near the deadline", elapsed)
	}
}

func TestTimeoutErrorMessage(t *testing.T) {
	te := &TimeoutError{Operation: "backend.list_tasks", Timeout: 100 * time.Millisecond}
	want := "operation backend.list_tasks timed out after 100ms"
	if te.Error() != want {
		t.Errorf("Error() = %q, want %q", te.Error(), want)
	}
}

func TestTimeoutDoesNotCancelOperation(t *testing.T) {
	ctxErr := make(chan error, 1)
	_, err := WithTimeout(context.Background(), func(ctx context.Context) (int, error) {
		time.Sleep(100 * time.Millisecond)
		ctxErr <- ctx.Err()
		return 1, nil
	}, 10*time.Millisecond, "orphaned")

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want timeout", err)
	}
	// The operation keeps running and its context was not cancelled by the guard.
	select {
	case e := <-ctxErr:
		if e != nil {
			t.Errorf("operation context cancelled by guard: %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("operation never completed after timeout")
	}
}

func TestZeroTimeoutExpiresPromptly(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	_, err := WithTimeout(context.Background(), func(ctx context.Context) (int, error) {
		<-block
		return 0, nil
	}, 0, "zero")

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want timeout for a blocked operation at 0ms", err)
	}
}

func TestRun(t *testing.T) {
	if err := Run(context.Background(), func(ctx context.Context) error { return nil }, time.Second, "ok"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	err := Run(context.Background(), func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	}, 10*time.Millisecond, "probe")
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want timeout", err)
	}
}

func TestWrapperReusable(t *testing.T) {
	w := NewWrapper[int](100*time.Millisecond, "reused")

	for i := 0; i < 3; i++ {
		got, err := w.Do(context.Background(), func(ctx context.Context) (int, error) {
			return i * 2, nil
		})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if got != i*2 {
			t.Errorf("run %d: got %d, want %d", i, got, i*2)
		}
	}

	_, err := w.Do(context.Background(), func(ctx context.Context) (int, error) {
		time.Sleep(time.Second)
		return 0, nil
	})
	var te *TimeoutError
	if !errors.As(err, &te) || te.Operation != "reused" {
		t.Fatalf("error = %v, want timeout named reused", err)
	}
}
