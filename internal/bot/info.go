package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/quicklink/core/telegram/callbacks"
	"github.com/m3rciful/quicklink/internal/chatbase"
	"github.com/m3rciful/quicklink/internal/storage"
)

var featureLabels = map[storage.Feature]string{
	storage.FeatureShorten:   "Shorten",
	storage.FeatureQRGen:     "QRGen",
	storage.FeatureQRScan:    "QRScan",
	storage.FeatureBroadcast: "Broadcast",
	storage.FeatureChat:      "Chat",
}

// Uptime renders d as days, hours, minutes and seconds.
func Uptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Second)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if days > 0 {
		return fmt.Sprintf("%dd %02dh %02dm %02ds", days, h, m, s)
	}
	return fmt.Sprintf("%02dh %02dm %02ds", h, m, s)
}

func (d *Dispatcher) uptime() string {
	return Uptime(d.opts.Now().Sub(d.opts.StartedAt))
}

func (d *Dispatcher) cmdStart(ctx context.Context, ev Event) error {
	var b strings.Builder
	b.WriteString("👋 QuickLink Utilities Bot\n\n")
	b.WriteString("Commands available:\n")
	b.WriteString("/qrgen - Generate QR (interactive)\n")
	b.WriteString("/qrscan - Scan QR (send image within 60s)\n")
	b.WriteString("/shorten - Shorten URL (interactive alias or skip)\n")
	b.WriteString("/state - Show bot stats\n")
	b.WriteString("/chat - Ask support (Chatbase)\n")
	b.WriteString("/owner - Owner info\n\n")
	b.WriteString("Uptime: " + d.uptime())
	return d.send(ctx, ev.ChatID, b.String())
}

func (d *Dispatcher) cmdState(ctx context.Context, ev Event) error {
	stats := d.deps.Store.Stats(ctx)
	recent := d.deps.Store.RecentURLs(ctx, storage.RecentURLShown)

	var b strings.Builder
	b.WriteString("📊 Bot State\n\n")
	fmt.Fprintf(&b, "Shortens: %d\n", stats[storage.CounterShorten])
	fmt.Fprintf(&b, "QR Generated: %d\n", stats[storage.CounterQRGen])
	fmt.Fprintf(&b, "QR Scanned: %d\n\n", stats[storage.CounterQRScan])
	b.WriteString("Last 5 shortened URLs:\n")
	if len(recent) == 0 {
		b.WriteString("No recent URLs")
	}
	for i, e := range recent {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- " + e.URL)
	}
	return d.send(ctx, ev.ChatID, b.String())
}

func (d *Dispatcher) cmdOwner(ctx context.Context, ev Event) error {
	name := d.opts.OwnerName
	if name == "" {
		name = "the bot owner"
	}
	var b strings.Builder
	b.WriteString("👤 Owner: " + name)
	if d.opts.OwnerURL != "" {
		b.WriteString("\n" + d.opts.OwnerURL)
	}
	if d.opts.ContactURL != "" {
		b.WriteString("\nContact: " + d.opts.ContactURL)
	}
	return d.send(ctx, ev.ChatID, b.String())
}

func (d *Dispatcher) cmdChat(ctx context.Context, ev Event) error {
	if !d.enabled(ctx, storage.FeatureChat) {
		return d.send(ctx, ev.ChatID, txtChatDisabled)
	}
	question := strings.TrimSpace(ev.Args)
	if question == "" {
		return d.send(ctx, ev.ChatID, txtChatUsage)
	}
	if d.deps.Chat == nil || !d.deps.Chat.Configured() {
		return d.send(ctx, ev.ChatID, txtChatNotSetup)
	}
	if err := d.send(ctx, ev.ChatID, txtChatAsking); err != nil {
		return err
	}
	reply, err := d.deps.Chat.Ask(ctx, question)
	switch {
	case errors.Is(err, chatbase.ErrNotConfigured):
		reply = txtChatNotSetup
	case errors.Is(err, chatbase.ErrEmptyReply):
		reply = txtChatNoResponse
	case err != nil:
		reply = txtChatErrorPrefix + err.Error()
	}
	return d.send(ctx, ev.ChatID, "🧠 Support: "+reply)
}

func (d *Dispatcher) featureKeyboard(ctx context.Context) Keyboard {
	flags := d.deps.Store.Features(ctx)
	kb := make(Keyboard, 0, len(storage.Features))
	for _, f := range storage.Features {
		state := "OFF"
		if storage.Enabled(flags, f) {
			state = "ON"
		}
		kb = append(kb, []Button{{
			Text: featureLabels[f] + ": " + state,
			Data: callbacks.Encode(NSFeature, string(f)),
		}})
	}
	return kb
}

func (d *Dispatcher) cmdAdmin(ctx context.Context, ev Event) error {
	if !d.isOwner(ev.UserID) {
		return d.send(ctx, ev.ChatID, txtNotOwner)
	}
	return d.deps.Out.Send(ctx, ev.ChatID, Message{Text: txtAdminPanel, Keyboard: d.featureKeyboard(ctx)})
}

func (d *Dispatcher) onFeatureToggle(ctx context.Context, ev Event, value string, ans *answer) error {
	if !d.isOwner(ev.UserID) {
		ans.text, ans.alert = txtNotAllowed, true
		return nil
	}
	f, ok := storage.ParseFeature(value)
	if !ok {
		ans.text = txtUnknownFeature
		return nil
	}
	d.deps.Store.Toggle(ctx, f)
	ans.text = txtToggled
	return d.edit(ctx, ev, Message{Text: txtFeatureToggled, Keyboard: d.featureKeyboard(ctx)})
}
