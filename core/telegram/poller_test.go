package telegram

import (
	"testing"
	"time"

	coreconfig "github.com/m3rciful/quicklink/core/config"

	tele "gopkg.in/telebot.v4"
)

func TestBuildPollerWebhook(t *testing.T) {
	p := BuildPoller(PollerOptions{
		RunMode: " Webhook ",
		Webhook: WebhookOptions{Listen: "0.0.0.0", Port: 8443, URL: "https://bot.example.com/hook"},
	})
	wh, ok := p.(*tele.Webhook)
	if !ok {
		t.Fatalf("poller = %T, want *tele.Webhook", p)
	}
	if wh.Listen != "0.0.0.0:8443" {
		t.Fatalf("listen = %q", wh.Listen)
	}
	if wh.Endpoint == nil || wh.Endpoint.PublicURL != "https://bot.example.com/hook" {
		t.Fatalf("endpoint = %+v", wh.Endpoint)
	}
	if len(wh.AllowedUpdates) != 2 {
		t.Fatalf("allowed updates = %v", wh.AllowedUpdates)
	}
}

func TestBuildPollerLongPollDefaults(t *testing.T) {
	lp, ok := BuildPoller(PollerOptions{}).(*tele.LongPoller)
	if !ok {
		t.Fatal("expected long poller")
	}
	if lp.Timeout != 10*time.Second {
		t.Fatalf("timeout = %s, want 10s", lp.Timeout)
	}
	if lp.AllowedUpdates[0] != "message" || lp.AllowedUpdates[1] != "callback_query" {
		t.Fatalf("allowed updates = %v", lp.AllowedUpdates)
	}
}

func TestPollerOptionsFromConfig(t *testing.T) {
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll, LongPollTimeoutSeconds: 25},
	}
	opts := pollerOptionsFrom(cfg)
	if opts.webhook() {
		t.Fatal("longpoll config reported as webhook")
	}
	if got := opts.pollTimeout(); got != 25*time.Second {
		t.Fatalf("poll timeout = %s", got)
	}
}
