package broadcast

import (
	"fmt"
	"sync"
	"testing"

	"github.com/shepherdlog/shepherd/internal/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(idStr string) types.LogRecord {
	return types.LogRecord{ID: idStr, RawLine: "line " + idStr}
}

func TestBroadcastNoSubscribers(t *testing.T) {
	b := New(4, nil)

	// Must be a silent no-op.
	b.Broadcast(record("a"))
	assert.Equal(t, 0, b.Len())
}

func TestRegisterAndReceive(t *testing.T) {
	b := New(4, nil)
	sub := b.Register()

	b.Broadcast(record("a"))
	b.Broadcast(record("b"))

	// Per-channel ordering is preserved.
	assert.Equal(t, "a", (<-sub.Records()).ID)
	assert.Equal(t, "b", (<-sub.Records()).ID)
}

func TestUnregisterStopsDelivery(t *testing.T) {
	b := New(4, nil)
	sub := b.Register()

	b.Broadcast(record("m1"))
	b.Unregister(sub)
	b.Broadcast(record("m2"))

	assert.Equal(t, "m1", (<-sub.Records()).ID)
	select {
	case rec := <-sub.Records():
		t.Fatalf("received %s after unregister", rec.ID)
	default:
	}

	select {
	case <-sub.Done():
	default:
		t.Fatal("Done should be closed after unregister")
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	b := New(4, nil)
	sub := b.Register()

	b.Unregister(sub)
	b.Unregister(sub)
	b.Unregister(nil)

	assert.Equal(t, 0, b.Len())
}

func TestFailedDeliveryEvicts(t *testing.T) {
	b := New(1, nil)
	slow := b.Register()
	healthy := b.Register()

	// First record fills both buffers; drain healthy so only slow overflows
	// on the next broadcast.
	b.Broadcast(record("m1"))
	assert.Equal(t, "m1", (<-healthy.Records()).ID)

	b.Broadcast(record("m2"))
	assert.Equal(t, "m2", (<-healthy.Records()).ID)

	// slow still holds m1 but is no longer registered.
	assert.Equal(t, 1, b.Len())
	select {
	case <-slow.Done():
	default:
		t.Fatal("evicted subscriber's Done should be closed")
	}

	// A subscriber whose send failed never receives later messages.
	b.Broadcast(record("m3"))
	assert.Equal(t, "m1", (<-slow.Records()).ID)
	select {
	case rec := <-slow.Records():
		t.Fatalf("evicted subscriber received %s", rec.ID)
	default:
	}
}

func TestBroadcastToMany(t *testing.T) {
	b := New(16, nil)

	subs := make([]*Subscription, 10)
	for i := range subs {
		subs[i] = b.Register()
	}

	for i := 0; i < 10; i++ {
		b.Broadcast(record(fmt.Sprintf("m%d", i)))
	}

	for _, sub := range subs {
		for i := 0; i < 10; i++ {
			rec := <-sub.Records()
			require.Equal(t, fmt.Sprintf("m%d", i), rec.ID)
		}
	}
}

func TestConcurrentBroadcastAndMembership(t *testing.T) {
	b := New(1024, nil)

	var wg sync.WaitGroup

	// Churning subscribers while broadcasting must not race or deadlock.
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sub := b.Register()
				b.Unregister(sub)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			b.Broadcast(record(fmt.Sprintf("m%d", i)))
		}
	}()

	wg.Wait()
}

func TestClose(t *testing.T) {
	b := New(4, nil)
	sub1 := b.Register()
	sub2 := b.Register()

	b.Close()

	assert.Equal(t, 0, b.Len())
	<-sub1.Done()
	<-sub2.Done()
}
