package accuracy

import "testing"

func TestInitialAccuracy(t *testing.T) {
	e := NewEstimator()
	if got := e.Milliseconds(); got != 2000 {
		t.Fatalf("expected initial accuracy 2000, got %d", got)
	}
}

func TestObserveTightensToOne(t *testing.T) {
	e := NewEstimator()
	e.Observe(1001) // odd mtime disproves anything coarser than 1ms
	if got := e.Milliseconds(); got != 1 {
		t.Fatalf("expected accuracy 1, got %d", got)
	}
}

func TestObserveTightensStepwise(t *testing.T) {
	e := NewEstimator()
	e.Observe(2010) // even, not a multiple of 20 -> tightens to 10
	if got := e.Milliseconds(); got != 10 {
		t.Fatalf("expected accuracy 10, got %d", got)
	}
	e.Observe(2000) // multiple of 20 and 200 and 2000 -> no further tightening
	if got := e.Milliseconds(); got != 10 {
		t.Fatalf("expected accuracy to remain 10, got %d", got)
	}
}

func TestObserveNeverWidens(t *testing.T) {
	e := NewEstimator()
	e.Observe(1001) // tighten to 1
	e.Observe(4000) // would suggest coarser granularity, must be ignored
	if got := e.Milliseconds(); got != 1 {
		t.Fatalf("accuracy widened: got %d", got)
	}
}

func TestObserveZeroIgnored(t *testing.T) {
	e := NewEstimator()
	e.Observe(0)
	if got := e.Milliseconds(); got != 2000 {
		t.Fatalf("zero mtime should not affect accuracy, got %d", got)
	}
}
