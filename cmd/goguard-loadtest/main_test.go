package main

import (
	"errors"
	"testing"
	"time"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %v", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty = %v", got)
	}
}

func TestRunPhaseCountsEveryOp(t *testing.T) {
	s := runPhase(100, 8, func(_, i int) (time.Duration, error) {
		if i%10 == 0 {
			return time.Microsecond, errors.New("boom")
		}
		return time.Microsecond, nil
	})
	if s.ops != 100 || s.failures != 10 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}
