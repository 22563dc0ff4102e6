package circuitbreaker

import (
	"testing"
	"time"
)

func TestOpensAfterFailureThreshold(t *testing.T) {
	b := New(3, 1, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if !b.Allow() {
			t.Fatalf("breaker opened after %d failures, threshold is 3", i+1)
		}
	}

	b.RecordFailure()
	if b.CurrentState() != StateOpen {
		t.Fatalf("expected open, got %s", b.CurrentState())
	}
	if b.Allow() {
		t.Error("open breaker must reject calls")
	}
}

func TestSuccessResetsFailureRun(t *testing.T) {
	b := New(3, 1, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	if b.CurrentState() != StateClosed {
		t.Errorf("expected closed after interrupted failure run, got %s", b.CurrentState())
	}
}

func TestHalfOpenProbeAndRecovery(t *testing.T) {
	b := New(1, 2, 10*time.Millisecond)

	b.RecordFailure()
	if b.Allow() {
		t.Fatal("expected open breaker")
	}

	time.Sleep(20 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected half-open probe after cool-off")
	}
	if b.CurrentState() != StateHalfOpen {
		t.Fatalf("expected half-open, got %s", b.CurrentState())
	}

	b.RecordSuccess()
	if b.CurrentState() != StateHalfOpen {
		t.Fatalf("expected half-open until success threshold met, got %s", b.CurrentState())
	}
	b.RecordSuccess()
	if b.CurrentState() != StateClosed {
		t.Errorf("expected closed after probe successes, got %s", b.CurrentState())
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := New(1, 1, 10*time.Millisecond)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	b.Allow()
	b.RecordFailure()

	if b.CurrentState() != StateOpen {
		t.Errorf("expected reopen on half-open failure, got %s", b.CurrentState())
	}
}

func TestStateChangeCallback(t *testing.T) {
	b := New(1, 1, time.Minute)

	var transitions []string
	b.OnStateChange(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	b.RecordFailure()
	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Errorf("unexpected transitions %v", transitions)
	}
}
