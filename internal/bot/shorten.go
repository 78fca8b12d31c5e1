package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/quicklink/core/logger"
	"github.com/m3rciful/quicklink/core/telegram/callbacks"
	"github.com/m3rciful/quicklink/core/telegram/state"
	"github.com/m3rciful/quicklink/internal/flow"
	"github.com/m3rciful/quicklink/internal/storage"
)

const fieldLongURL = "url"

func aliasKeyboard(manual bool) Keyboard {
	kb := Keyboard{{{Text: txtAliasSkip, Data: callbacks.Encode(NSAlias, "skip")}}}
	if manual {
		kb = append(kb, []Button{{Text: txtAliasManual, Data: callbacks.Encode(NSAlias, "manual")}})
	}
	return kb
}

func (d *Dispatcher) startShorten(ctx context.Context, ev Event) error {
	if !d.enabled(ctx, storage.FeatureShorten) {
		return d.send(ctx, ev.ChatID, txtShortenDisabled)
	}
	d.start(ctx, ev, flow.Shorten, flow.StepAwaitURL)
	return d.send(ctx, ev.ChatID, txtAskURL)
}

func (d *Dispatcher) onShortenMessage(ctx context.Context, ev Event, sess state.Session) error {
	text := strings.TrimSpace(ev.Text)
	switch sess.Step {
	case flow.StepAwaitURL:
		if !flow.ValidURL(text) {
			return d.send(ctx, ev.ChatID, txtInvalidURL)
		}
		_, err := d.deps.Sessions.Update(ev.UserID, inFlow(flow.Shorten, flow.StepAwaitURL), func(s *state.Session) error {
			s.Set(fieldLongURL, text)
			s.Step = flow.StepAwaitAliasChoice
			return nil
		})
		if err != nil {
			return d.send(ctx, ev.ChatID, txtSessionExpired)
		}
		return d.deps.Out.Send(ctx, ev.ChatID, Message{Text: txtAskAlias, Keyboard: aliasKeyboard(true)})

	case flow.StepAwaitAliasChoice, flow.StepAwaitAlias:
		if text == "" {
			_, _ = d.deps.Sessions.Update(ev.UserID, inFlow(flow.Shorten, flow.StepAwaitAliasChoice), func(s *state.Session) error {
				s.Step = flow.StepAwaitAlias
				return nil
			})
			return d.deps.Out.Send(ctx, ev.ChatID, Message{Text: txtTypeAlias, Keyboard: aliasKeyboard(false)})
		}
		taken, ok := d.deps.Sessions.Take(ev.UserID, inFlow(flow.Shorten, flow.StepAwaitAliasChoice, flow.StepAwaitAlias))
		if !ok {
			return d.send(ctx, ev.ChatID, txtSessionExpired)
		}
		if err := d.send(ctx, ev.ChatID, txtShortening); err != nil {
			return err
		}
		res := d.shorten(ctx, taken, text)
		return d.send(ctx, ev.ChatID, res)
	}
	return d.send(ctx, ev.ChatID, txtBusy)
}

func (d *Dispatcher) onAlias(ctx context.Context, ev Event, value string, ans *answer) error {
	switch value {
	case "manual":
		_, err := d.deps.Sessions.Update(ev.UserID, inFlow(flow.Shorten, flow.StepAwaitAliasChoice, flow.StepAwaitAlias), func(s *state.Session) error {
			s.Step = flow.StepAwaitAlias
			return nil
		})
		if err != nil {
			return d.sessionExpired(ctx, ev)
		}
		return d.edit(ctx, ev, Message{Text: txtTypeAlias, Keyboard: aliasKeyboard(false)})
	case "skip":
		taken, ok := d.deps.Sessions.Take(ev.UserID, inFlow(flow.Shorten, flow.StepAwaitAliasChoice, flow.StepAwaitAlias))
		if !ok {
			return d.sessionExpired(ctx, ev)
		}
		if err := d.edit(ctx, ev, Message{Text: txtShorteningRand}); err != nil {
			return err
		}
		return d.edit(ctx, ev, Message{Text: d.shorten(ctx, taken, "")})
	}
	ans.text = txtUnsupported
	return nil
}

// shorten performs the single shorten request of a claimed session and
// returns the reply text.
func (d *Dispatcher) shorten(ctx context.Context, sess state.Session, alias string) string {
	long := sess.Value(fieldLongURL)
	if d.deps.Shortener == nil {
		d.finish(ctx, sess, "fail")
		return txtShortenError + "Unknown"
	}
	short, err := d.deps.Shortener.Shorten(ctx, long, alias)
	if err != nil {
		logger.Warn(ctx, "adapter", "shorten.failed",
			slog.Bool("alias", alias != ""),
			slog.String("err", err.Error()),
		)
		d.finish(ctx, sess, "fail")
		msg := strings.TrimSpace(err.Error())
		if msg == "" {
			msg = "Unknown"
		}
		return txtShortenError + msg
	}
	d.deps.Store.Increment(ctx, storage.CounterShorten)
	d.deps.Store.PushURL(ctx, short, d.opts.Now())
	d.finish(ctx, sess, "ok")
	return txtShortened + short
}
