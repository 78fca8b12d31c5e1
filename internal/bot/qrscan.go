package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m3rciful/quicklink/core/logger"
	"github.com/m3rciful/quicklink/core/telegram/callbacks"
	"github.com/m3rciful/quicklink/core/telegram/format"
	"github.com/m3rciful/quicklink/core/telegram/state"
	"github.com/m3rciful/quicklink/internal/flow"
	"github.com/m3rciful/quicklink/internal/storage"
	"github.com/m3rciful/quicklink/internal/tempfile"
)

func fallbackKeyboard() Keyboard {
	return Keyboard{
		{{Text: txtFallbackYes, Data: callbacks.Encode(NSFallback, "yes")}},
		{{Text: txtFallbackNo, Data: callbacks.Encode(NSFallback, "no")}},
	}
}

func (d *Dispatcher) startQRScan(ctx context.Context, ev Event) error {
	if !d.enabled(ctx, storage.FeatureQRScan) {
		return d.send(ctx, ev.ChatID, txtQRScanDisabled)
	}
	d.start(ctx, ev, flow.QRScan, flow.StepAwaitImage)
	chatID := ev.ChatID
	d.deps.Sessions.Arm(ev.UserID, d.opts.ScanTimeout, func(sess state.Session) {
		_ = d.send(d.base, chatID, txtScanTimeout)
	})
	return d.send(ctx, ev.ChatID, txtScanPrompt)
}

func (d *Dispatcher) onQRScanMessage(ctx context.Context, ev Event, sess state.Session) error {
	switch sess.Step {
	case flow.StepAwaitImage:
	case flow.StepAwaitConsent:
		return d.deps.Out.Send(ctx, ev.ChatID, Message{Text: txtFallbackOffer, Keyboard: fallbackKeyboard()})
	default:
		return d.send(ctx, ev.ChatID, txtBusy)
	}

	if ev.Media == nil || !ev.Media.Image {
		if taken, ok := d.deps.Sessions.Take(ev.UserID, inFlow(flow.QRScan, flow.StepAwaitImage)); ok {
			d.finish(ctx, taken, "cancelled")
		}
		return d.send(ctx, ev.ChatID, txtNoImage)
	}

	_, err := d.deps.Sessions.Update(ev.UserID, inFlow(flow.QRScan, flow.StepAwaitImage), func(s *state.Session) error {
		s.Step = flow.StepDecoding
		return nil
	})
	if err != nil {
		return d.send(ctx, ev.ChatID, txtSessionExpired)
	}
	d.deps.Sessions.Disarm(ev.UserID)

	tf, err := d.download(ctx, ev.Media)
	if err != nil {
		logger.Warn(ctx, "adapter", "qr.download_failed", slog.String("err", err.Error()))
		if taken, ok := d.deps.Sessions.Take(ev.UserID, inFlow(flow.QRScan, flow.StepDecoding)); ok {
			d.finish(ctx, taken, "fail")
		}
		return d.send(ctx, ev.ChatID, txtDownloadFailed)
	}
	if err := d.send(ctx, ev.ChatID, txtScanning); err != nil {
		_ = tf.Release()
		return err
	}

	texts := d.decodeLocal(ctx, tf.Path)
	if len(texts) > 0 {
		_ = tf.Release()
		if taken, ok := d.deps.Sessions.Take(ev.UserID, inFlow(flow.QRScan, flow.StepDecoding)); ok {
			d.finish(ctx, taken, "ok")
		}
		d.deps.Store.Increment(ctx, storage.CounterQRScan)
		return d.deps.Out.Send(ctx, ev.ChatID, Message{
			Text:     escape(txtLocalDecoded) + format.Code(strings.Join(texts, "\n")),
			Markdown: true,
		})
	}

	// The session owns the image from here on; replacing or expiring it releases the file.
	_, err = d.deps.Sessions.Update(ev.UserID, inFlow(flow.QRScan, flow.StepDecoding), func(s *state.Session) error {
		s.Step = flow.StepAwaitConsent
		s.Artifact = tf
		return nil
	})
	if err != nil {
		_ = tf.Release()
		return nil
	}
	d.deps.Sessions.Arm(ev.UserID, d.opts.Retention, nil)
	return d.deps.Out.Send(ctx, ev.ChatID, Message{Text: txtFallbackOffer, Keyboard: fallbackKeyboard()})
}

func (d *Dispatcher) download(ctx context.Context, m *Media) (*tempfile.File, error) {
	ext := m.Ext
	if ext == "" {
		ext = ".jpg"
	}
	tf, err := d.deps.Temp.Create("qrscan", ext)
	if err != nil {
		return nil, err
	}
	if d.deps.Files == nil {
		_ = tf.Release()
		return nil, errNoDownloader
	}
	if err := d.deps.Files.Download(ctx, m.FileID, tf.Path); err != nil {
		_ = tf.Release()
		return nil, err
	}
	return tf, nil
}

func (d *Dispatcher) decodeLocal(ctx context.Context, path string) []string {
	if d.deps.Codec == nil {
		return nil
	}
	texts, err := d.deps.Codec.DecodeFile(path)
	if err != nil {
		logger.Info(ctx, "adapter", "qr.decode_local_failed", slog.String("err", err.Error()))
		return nil
	}
	return texts
}

func (d *Dispatcher) onFallback(ctx context.Context, ev Event, value string, ans *answer) error {
	if value != "yes" && value != "no" {
		ans.text = txtUnsupported
		return nil
	}
	sess, ok := d.deps.Sessions.Take(ev.UserID, inFlow(flow.QRScan, flow.StepAwaitConsent))
	if !ok {
		return d.sessionExpired(ctx, ev)
	}
	release := func() {
		if sess.Artifact != nil {
			_ = sess.Artifact.Release()
		}
	}
	defer release()

	if value == "no" {
		d.finish(ctx, sess, "cancelled")
		return d.edit(ctx, ev, Message{Text: txtCancelled})
	}

	if err := d.edit(ctx, ev, Message{Text: txtExternalDecoding}); err != nil {
		return err
	}
	tf, _ := sess.Artifact.(*tempfile.File)
	var texts []string
	if tf != nil && d.deps.Remote != nil {
		var err error
		texts, err = d.deps.Remote.DecodeFile(ctx, tf.Path)
		if err != nil {
			logger.Warn(ctx, "adapter", "qr.decode_remote_failed", slog.String("err", err.Error()))
		}
	}
	if len(texts) == 0 {
		d.finish(ctx, sess, "fail")
		return d.edit(ctx, ev, Message{Text: txtExternalFailed})
	}
	d.deps.Store.Increment(ctx, storage.CounterQRScan)
	d.finish(ctx, sess, "ok")
	return d.edit(ctx, ev, Message{
		Text:     escape(txtExternalDecoded) + format.Code(strings.Join(texts, "\n")),
		Markdown: true,
	})
}
