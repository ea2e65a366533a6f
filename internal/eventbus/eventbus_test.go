package eventbus

import (
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Publish("hello")
	select {
	case e := <-sub:
		if e != "hello" {
			t.Fatalf("unexpected event: %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	for i := 0; i < 20; i++ {
		b.Publish(i)
	}
	// Buffer is 8; the rest must have been dropped without blocking.
	count := 0
	for {
		select {
		case <-sub:
			count++
		default:
			if count != 8 {
				t.Fatalf("expected 8 buffered events, got %d", count)
			}
			return
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed")
	}
	b.Publish("after") // must not panic
}

func TestBus_Close(t *testing.T) {
	b := New()
	sub := b.Subscribe()
	b.Close()
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed")
	}
	b.Close() // idempotent
	b.Publish("after close")
}
