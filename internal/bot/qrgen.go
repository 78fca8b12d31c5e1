package bot

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m3rciful/quicklink/core/logger"
	"github.com/m3rciful/quicklink/core/telegram/callbacks"
	"github.com/m3rciful/quicklink/core/telegram/format"
	"github.com/m3rciful/quicklink/core/telegram/state"
	"github.com/m3rciful/quicklink/internal/flow"
	"github.com/m3rciful/quicklink/internal/storage"
)

// stepRender marks a QR session whose fields are complete and whose image is being built.
const stepRender = "render"

var securityLabels = map[string]string{
	flow.SecurityWPA:  "🔒 WPA/WPA2",
	flow.SecurityWEP:  "🔑 WEP",
	flow.SecurityNone: "🔓 NONE",
}

func typeKeyboard() Keyboard {
	types := flow.QRTypes()
	kb := make(Keyboard, 0, len(types))
	for _, t := range types {
		kb = append(kb, []Button{{Text: t.Label, Data: callbacks.Encode(NSQRType, t.Value)}})
	}
	return kb
}

func securityKeyboard() Keyboard {
	kb := make(Keyboard, 0, len(flow.Securities))
	for _, s := range flow.Securities {
		kb = append(kb, []Button{{Text: securityLabels[s], Data: callbacks.Encode(NSWiFiSec, s)}})
	}
	return kb
}

func fieldPrompt(f flow.Field) Message {
	m := Message{Text: f.Prompt}
	if f.Choice {
		m.Keyboard = securityKeyboard()
	}
	return m
}

func (d *Dispatcher) startQRGen(ctx context.Context, ev Event) error {
	if !d.enabled(ctx, storage.FeatureQRGen) {
		return d.send(ctx, ev.ChatID, txtQRGenDisabled)
	}
	d.start(ctx, ev, flow.QRGen, flow.StepType)
	return d.deps.Out.Send(ctx, ev.ChatID, Message{Text: txtChooseType, Keyboard: typeKeyboard()})
}

// onQRType picks the payload kind. Picking again restarts field collection.
func (d *Dispatcher) onQRType(ctx context.Context, ev Event, value string, ans *answer) error {
	typ, ok := flow.LookupQRType(value)
	if !ok {
		ans.text = txtUnknownType
		return nil
	}
	first := typ.Fields[0]
	_, err := d.deps.Sessions.Update(ev.UserID, inFlow(flow.QRGen), func(s *state.Session) error {
		if s.Step == stepRender {
			return state.ErrNoSession
		}
		s.SubType = typ.Value
		s.Fields = map[string]string{}
		s.Order = nil
		s.Step = first.Name
		return nil
	})
	if err != nil {
		return d.sessionExpired(ctx, ev)
	}
	return d.edit(ctx, ev, fieldPrompt(first))
}

func (d *Dispatcher) onQRGenMessage(ctx context.Context, ev Event, sess state.Session) error {
	if sess.Step == flow.StepType {
		return d.deps.Out.Send(ctx, ev.ChatID, Message{Text: txtChooseType, Keyboard: typeKeyboard()})
	}
	if sess.Step == stepRender {
		return d.send(ctx, ev.ChatID, txtBusy)
	}
	typ, ok := flow.LookupQRType(sess.SubType)
	if !ok {
		d.deps.Sessions.Delete(ev.UserID)
		return d.send(ctx, ev.ChatID, txtSessionExpired)
	}
	field, ok := typ.Field(sess.Step)
	if !ok {
		d.deps.Sessions.Delete(ev.UserID)
		return d.send(ctx, ev.ChatID, txtSessionExpired)
	}
	if field.Choice {
		return d.deps.Out.Send(ctx, ev.ChatID, fieldPrompt(field))
	}
	value, err := flow.Answer(field, ev.Text)
	if errors.Is(err, flow.ErrEmptyAnswer) {
		return d.send(ctx, ev.ChatID, field.Prompt)
	}
	return d.collect(ctx, ev, typ, field, value)
}

func (d *Dispatcher) onWiFiSecurity(ctx context.Context, ev Event, value string, ans *answer) error {
	valid := false
	for _, s := range flow.Securities {
		if s == value {
			valid = true
		}
	}
	if !valid {
		ans.text = txtUnsupported
		return nil
	}
	sess, ok := d.deps.Sessions.Get(ev.UserID)
	if !ok || !sess.Is(flow.QRGen, flow.FieldSecurity) {
		return d.sessionExpired(ctx, ev)
	}
	typ, ok := flow.LookupQRType(sess.SubType)
	if !ok {
		return d.sessionExpired(ctx, ev)
	}
	field, _ := typ.Field(flow.FieldSecurity)
	return d.collect(ctx, ev, typ, field, value)
}

// collect stores value for field and either prompts for the next field or
// renders the payload once the type is complete.
func (d *Dispatcher) collect(ctx context.Context, ev Event, typ flow.QRType, field flow.Field, value string) error {
	var next flow.Field
	var more bool
	_, err := d.deps.Sessions.Update(ev.UserID, inFlow(flow.QRGen, field.Name), func(s *state.Session) error {
		if s.SubType != typ.Value {
			return state.ErrNoSession
		}
		s.Set(field.Name, value)
		next, more = typ.Next(s.Fields)
		if more {
			s.Step = next.Name
		} else {
			s.Step = stepRender
		}
		return nil
	})
	if err != nil {
		if ev.Kind == KindCallback {
			return d.sessionExpired(ctx, ev)
		}
		return d.send(ctx, ev.ChatID, txtSessionExpired)
	}
	if more {
		return d.deps.Out.Send(ctx, ev.ChatID, fieldPrompt(next))
	}

	sess, ok := d.deps.Sessions.Take(ev.UserID, inFlow(flow.QRGen, stepRender))
	if !ok {
		return nil
	}
	return d.render(ctx, ev, typ, sess)
}

func (d *Dispatcher) render(ctx context.Context, ev Event, typ flow.QRType, sess state.Session) error {
	payload, err := typ.Payload(sess.Fields)
	if err == nil && d.deps.Codec == nil {
		err = errors.New("bot: no QR codec configured")
	}
	var png []byte
	if err == nil {
		png, err = d.deps.Codec.Encode(payload)
	}
	if err != nil {
		logger.Error(ctx, "adapter", "qr.encode_failed",
			slog.String("payload", typ.Value),
			slog.String("err", err.Error()),
		)
		d.finish(ctx, sess, "fail")
		return d.send(ctx, ev.ChatID, txtQRGenFailed)
	}

	if ev.Kind == KindCallback {
		if err := d.edit(ctx, ev, Message{Text: txtWiFiSending}); err != nil {
			return err
		}
	}
	caption := escape("Type:"+typ.Value+"\nEncoded:") + format.Code(payload)
	if err := d.deps.Out.SendPhoto(ctx, ev.ChatID, png, Message{Text: caption, Markdown: true}); err != nil {
		return err
	}
	d.deps.Store.Increment(ctx, storage.CounterQRGen)
	d.finish(ctx, sess, "ok")
	return nil
}

func escape(s string) string {
	out, _ := format.EscapeMarkdown(s, format.MarkdownV2, "")
	return out
}
