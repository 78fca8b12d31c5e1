package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/m3rciful/quicklink/core/logger"
	"github.com/m3rciful/quicklink/core/telegram/callbacks"
	"github.com/m3rciful/quicklink/core/telegram/state"
	"github.com/m3rciful/quicklink/internal/broadcast"
	"github.com/m3rciful/quicklink/internal/flow"
	"github.com/m3rciful/quicklink/internal/storage"
)

const (
	fieldBcText   = "text"
	fieldBcKind   = "kind"
	fieldBcFileID = "file_id"
)

func confirmKeyboard() Keyboard {
	return Keyboard{
		{{Text: txtBroadcastConfirm, Data: callbacks.Encode(NSBcast, "confirm")}},
		{{Text: txtBroadcastCancel, Data: callbacks.Encode(NSBcast, "cancel")}},
	}
}

// reportText renders a finished broadcast for the owner.
func reportText(r broadcast.Report) string {
	return fmt.Sprintf("Broadcast completed. Sent: %d, Failed: %d, Total: %d. Time: %ds",
		r.Sent, r.Failed, r.Total, int(r.Elapsed/time.Second))
}

func (d *Dispatcher) startBroadcast(ctx context.Context, ev Event) error {
	if !d.isOwner(ev.UserID) {
		return d.send(ctx, ev.ChatID, txtBroadcastNotOwner)
	}
	if !d.enabled(ctx, storage.FeatureBroadcast) {
		return d.send(ctx, ev.ChatID, txtBroadcastDisabled)
	}
	d.start(ctx, ev, flow.Broadcast, flow.StepAwaitContent)
	chatID := ev.ChatID
	d.deps.Sessions.Arm(ev.UserID, d.opts.ContentTimeout, func(state.Session) {
		_ = d.send(d.base, chatID, txtBroadcastTimeout)
	})
	return d.send(ctx, ev.ChatID, txtBroadcastPrompt)
}

func (d *Dispatcher) onBroadcastMessage(ctx context.Context, ev Event, sess state.Session) error {
	switch sess.Step {
	case flow.StepAwaitContent:
	case flow.StepAwaitConfirm:
		return d.deps.Out.Send(ctx, ev.ChatID, Message{Text: txtBroadcastPending, Keyboard: confirmKeyboard()})
	default:
		return d.send(ctx, ev.ChatID, txtBusy)
	}

	content := broadcast.Content{Kind: broadcast.KindText, Text: ev.Text}
	if ev.Media != nil {
		content.Kind = ev.Media.Kind
		content.FileID = ev.Media.FileID
	}
	if content.Kind == broadcast.KindText && content.Text == "" {
		return d.send(ctx, ev.ChatID, txtBroadcastPrompt)
	}

	_, err := d.deps.Sessions.Update(ev.UserID, inFlow(flow.Broadcast, flow.StepAwaitContent), func(s *state.Session) error {
		s.Set(fieldBcText, content.Text)
		s.Set(fieldBcKind, string(content.Kind))
		s.Set(fieldBcFileID, content.FileID)
		s.Step = flow.StepAwaitConfirm
		return nil
	})
	if err != nil {
		return d.send(ctx, ev.ChatID, txtSessionExpired)
	}
	d.deps.Sessions.Disarm(ev.UserID)
	return d.deps.Out.Send(ctx, ev.ChatID, Message{Text: txtBroadcastPreview, Keyboard: confirmKeyboard()})
}

func (d *Dispatcher) onBroadcastChoice(ctx context.Context, ev Event, value string, ans *answer) error {
	if !d.isOwner(ev.UserID) {
		ans.text, ans.alert = txtNotAllowed, true
		return nil
	}
	if value != "confirm" && value != "cancel" {
		ans.text = txtUnsupported
		return nil
	}
	sess, ok := d.deps.Sessions.Take(ev.UserID, inFlow(flow.Broadcast, flow.StepAwaitConfirm))
	if !ok {
		return d.sessionExpired(ctx, ev)
	}
	if value == "cancel" {
		d.finish(ctx, sess, "cancelled")
		return d.edit(ctx, ev, Message{Text: txtBroadcastStopped})
	}

	if err := d.edit(ctx, ev, Message{Text: txtBroadcastStarting}); err != nil {
		return err
	}
	users := d.deps.Store.Users(ctx)
	if len(users) == 0 {
		d.finish(ctx, sess, "cancelled")
		return d.edit(ctx, ev, Message{Text: txtBroadcastNoUsers})
	}
	content := broadcast.Content{
		Kind:   broadcast.Kind(sess.Value(fieldBcKind)),
		Text:   sess.Value(fieldBcText),
		FileID: sess.Value(fieldBcFileID),
	}

	runCtx := logger.WithRID(d.base, logger.RIDFrom(ctx))
	runCtx = logger.WithFlow(runCtx, flow.Broadcast, flow.StepSending)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		rep := d.runBroadcast(runCtx, users, content)
		d.deps.Store.SetLastBroadcast(runCtx, d.opts.Now())
		d.finish(runCtx, sess, "ok")
		_ = d.edit(runCtx, ev, Message{Text: reportText(rep)})
	}()
	return nil
}

func (d *Dispatcher) runBroadcast(ctx context.Context, users []int64, c broadcast.Content) broadcast.Report {
	send := d.deps.Deliver
	if send == nil {
		send = func(ctx context.Context, userID int64, c broadcast.Content) error {
			return d.deps.Out.Send(ctx, userID, Message{Text: c.Text})
		}
	}
	return broadcast.Run(ctx, users, c, send, d.opts.Broadcast)
}
