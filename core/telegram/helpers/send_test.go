package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/m3rciful/quicklink/core/telegram/sender"
)

func TestDispatchInlineWithoutSender(t *testing.T) {
	SetDispatcher(nil)
	ran := false
	if err := Dispatch(context.Background(), "send.text", "sendMessage", func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !ran {
		t.Fatal("run was not called inline")
	}
}

func TestDispatchQueuesOnSender(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{Workers: 1})
	SetDispatcher(d)
	defer SetDispatcher(nil)

	done := make(chan struct{})
	if err := Dispatch(context.Background(), "send.text", "sendMessage", func() error {
		close(done)
		return nil
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("queued job did not run")
	}
	d.Close()
}

func TestDispatchFallsBackWhenClosed(t *testing.T) {
	d := sender.NewDispatcher(sender.Options{})
	d.Close()
	SetDispatcher(d)
	defer SetDispatcher(nil)

	ran := false
	if err := Dispatch(context.Background(), "send.text", "sendMessage", func() error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !ran {
		t.Fatal("closed queue should run inline")
	}
}
