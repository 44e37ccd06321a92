package bus

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ccremote/midi"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func cc(ch, num, val uint8) Event {
	return ControlChange(midi.ControlChange{Channel: ch, Controller: num, Value: val})
}

func TestBus_DeliversInOrderToEverySubscriber(t *testing.T) {
	b := New(16, quietLogger())
	var a, c []Event
	b.Subscribe(func(ev Event) { a = append(a, ev) })
	b.Subscribe(func(ev Event) { c = append(c, ev) })

	want := []Event{cc(1, 1, 1), DevicesChanged(), cc(1, 1, 2), cc(2, 3, 4)}
	for _, ev := range want {
		require.True(t, b.Publish(ev))
	}

	assert.Equal(t, 4, b.Drain())
	assert.Equal(t, want, a)
	assert.Equal(t, want, c)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	b := New(2, quietLogger())

	assert.True(t, b.Publish(cc(1, 1, 1)))
	assert.True(t, b.Publish(cc(1, 1, 2)))
	assert.False(t, b.Publish(cc(1, 1, 3)))
	assert.Equal(t, uint64(1), b.Dropped())

	var got []Event
	b.Subscribe(func(ev Event) { got = append(got, ev) })
	b.Drain()
	assert.Equal(t, []Event{cc(1, 1, 1), cc(1, 1, 2)}, got)
}

func TestBus_UnsubscribeInsideCallback(t *testing.T) {
	b := New(8, quietLogger())

	var calls int
	var unsub func()
	unsub = b.Subscribe(func(ev Event) {
		calls++
		unsub()
	})
	var other int
	b.Subscribe(func(ev Event) { other++ })

	b.Publish(cc(1, 1, 1))
	b.Publish(cc(1, 1, 2))
	b.Drain()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 2, other)
	assert.Equal(t, 1, b.Subscribers())
}

func TestBus_UnsubscribeSkipsLaterSubscriberInSameDispatch(t *testing.T) {
	b := New(8, quietLogger())

	var unsubSecond func()
	var second int
	b.Subscribe(func(ev Event) { unsubSecond() })
	unsubSecond = b.Subscribe(func(ev Event) { second++ })

	b.Publish(cc(1, 1, 1))
	b.Drain()

	assert.Equal(t, 0, second)
}

func TestBus_UnsubscribeTwice(t *testing.T) {
	b := New(8, quietLogger())
	unsub := b.Subscribe(func(Event) {})
	unsub()
	unsub()
	assert.Equal(t, 0, b.Subscribers())
}

func TestBus_RunFromProducerGoroutine(t *testing.T) {
	b := New(DefaultBuffer, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []uint8
	done := make(chan struct{})
	b.Subscribe(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.CC.Value)
		if len(got) == 100 {
			close(done)
		}
	})
	go b.Run(ctx)

	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(cc(1, 1, uint8(i)))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		require.Equal(t, uint8(i), v)
	}
}
