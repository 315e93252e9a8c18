package bus

import (
	"testing"
	"time"
)

func TestPublishReachesTopicSubscribers(t *testing.T) {
	b := New(nil)
	defer b.Close()

	status := b.Subscribe(TopicStatus)
	both := b.Subscribe(TopicStatus, TopicFrame)

	b.Publish(TopicFrame, 7)
	b.Publish(TopicStatus, "hello")

	select {
	case got := <-status:
		if got != "hello" {
			t.Fatalf("status subscriber got %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("status subscriber got nothing")
	}

	var got []any
	for len(got) < 2 {
		select {
		case m := <-both:
			got = append(got, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("multi-topic subscriber got %v", got)
		}
	}
	if got[0] != 7 || got[1] != "hello" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestPublishAfterCloseReturns(t *testing.T) {
	b := New(nil)
	b.Close()
	b.Close()

	done := make(chan struct{})
	go func() {
		b.Publish(TopicStatus, "late")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked after Close")
	}
}
