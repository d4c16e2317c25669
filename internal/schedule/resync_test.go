package schedule

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingResyncer struct {
	calls atomic.Int32
	err   error
}

func (c *countingResyncer) Resync(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestResyncRunsPeriodically(t *testing.T) {
	target := &countingResyncer{err: errors.New("offline")}
	r, err := NewResync(target, 20*time.Millisecond, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for target.calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("resync ran %d times", target.calls.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestResyncDisabled(t *testing.T) {
	target := &countingResyncer{}
	r, err := NewResync(target, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)
	if err := r.Stop(); err != nil {
		t.Fatal(err)
	}
	if target.calls.Load() != 0 {
		t.Errorf("disabled scheduler ran %d times", target.calls.Load())
	}
}
