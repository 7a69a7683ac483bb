package workpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitReturnsFnResult(t *testing.T) {
	p := New(2)
	v, err := p.Submit(context.Background(), func(context.Context) (interface{}, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if v.(int) != 42 {
		t.Fatalf("result = %v, want 42", v)
	}
}

func TestSubmitBoundsConcurrency(t *testing.T) {
	p := New(2)
	var inFlight int32
	var maxSeen int32

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			p.Submit(context.Background(), func(context.Context) (interface{}, error) {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					cur := atomic.LoadInt32(&maxSeen)
					if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil, nil
			})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	if atomic.LoadInt32(&maxSeen) > 2 {
		t.Fatalf("max concurrent = %d, want <= 2", maxSeen)
	}
}

func TestSubmitRespectsCancellation(t *testing.T) {
	p := New(1)
	holding := make(chan struct{})
	release := make(chan struct{})
	go p.Submit(context.Background(), func(context.Context) (interface{}, error) {
		close(holding)
		<-release
		return nil, nil
	})
	<-holding
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Submit(ctx, func(context.Context) (interface{}, error) {
		t.Fatal("fn should not run once the context is already cancelled and no slot is free")
		return nil, nil
	})
	if err == nil {
		t.Fatal("expected Submit to fail fast on a cancelled context when no slot is immediately free")
	}
}

func TestRunStopsOnFirstError(t *testing.T) {
	p := New(4)
	wantErr := context.Canceled
	err := p.Run(context.Background(),
		func(context.Context) error { return nil },
		func(context.Context) error { return wantErr },
		func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	)
	if err == nil {
		t.Fatal("expected Run to surface the failing task's error")
	}
}

func TestDefaultSizeIsPositive(t *testing.T) {
	p := New(0)
	if p.Size() <= 0 {
		t.Fatalf("Size() = %d, want > 0", p.Size())
	}
}
