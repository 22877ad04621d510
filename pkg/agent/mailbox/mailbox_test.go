package mailbox

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestSendAndAwaitRoundTrip(t *testing.T) {
	mb, sender := New[string, int](0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		req, ok := mb.Recv(context.Background())
		if !ok {
			t.Error("expected a request")
			return
		}
		if req.Payload != "ping" {
			t.Errorf("payload = %q, want ping", req.Payload)
		}
		req.Reply(42)
	}()

	res, ok := sender.SendAndAwait(context.Background(), "ping")
	wg.Wait()
	if !ok {
		t.Fatal("expected ok=true")
	}
	if *res != 42 {
		t.Fatalf("res = %d, want 42", *res)
	}
}

func TestSendAndAwaitClosedMailboxYieldsFalse(t *testing.T) {
	mb, sender := New[string, int](1)
	mb.Close()

	_, ok := sender.SendAndAwait(context.Background(), "ping")
	if ok {
		t.Fatal("expected ok=false on closed mailbox")
	}
}

func TestSendAndAwaitDroppedReplyYieldsFalse(t *testing.T) {
	mb, sender := New[string, int](1)

	go func() {
		req, ok := mb.Recv(context.Background())
		if !ok {
			return
		}
		_ = req // never replies
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, ok := sender.SendAndAwait(ctx, "ping")
	if ok {
		t.Fatal("expected ok=false when responder never replies and context expires")
	}
}

func TestMailboxFIFOOrder(t *testing.T) {
	mb, sender := New[int, int](16)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sender.SendAndAwait(context.Background(), n)
		}(i)
		// Wait until request i is queued so the send order is 0..4.
		for len(mb.ch) < i+1 {
			time.Sleep(time.Millisecond)
		}
	}

	var order []int
	for i := 0; i < 5; i++ {
		req, ok := mb.Recv(context.Background())
		if !ok {
			t.Fatal("unexpected close")
		}
		order = append(order, req.Payload)
		req.Reply(req.Payload)
	}
	wg.Wait()
	if len(order) != 5 {
		t.Fatalf("got %d requests, want 5", len(order))
	}
	for i, n := range order {
		if n != i {
			t.Fatalf("received order %v, want [0 1 2 3 4]", order)
		}
	}
}
