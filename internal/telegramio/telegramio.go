// Package telegramio binds the conversation engine to telebot: it turns updates
// into bot events and carries replies back through the outbound sender.
package telegramio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/m3rciful/quicklink/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/quicklink/core/telegram/helpers"
	"github.com/m3rciful/quicklink/core/telegram/keyboard"
	tgsender "github.com/m3rciful/quicklink/core/telegram/sender"
	"github.com/m3rciful/quicklink/core/telegram/ui"
	"github.com/m3rciful/quicklink/internal/bot"
	"github.com/m3rciful/quicklink/internal/broadcast"

	tele "gopkg.in/telebot.v4"
)

// ErrNotAttached is returned by outbound calls made before the bot is running.
var ErrNotAttached = errors.New("telegramio: bot not attached")

// Handler consumes translated events.
type Handler interface {
	Handle(ctx context.Context, ev bot.Event) error
}

// Adapter implements bot.Responder and bot.Downloader on top of a telebot bot.
type Adapter struct {
	bot     atomic.Pointer[tele.Bot]
	handler atomic.Value
}

var (
	_ bot.Responder       = (*Adapter)(nil)
	_ bot.Downloader      = (*Adapter)(nil)
	_ ui.FallbackProvider = (*Adapter)(nil)
)

// New returns an adapter with no bot attached yet.
func New() *Adapter {
	return &Adapter{}
}

// Attach sets the live bot. It is called once the runtime has built it.
func (a *Adapter) Attach(b *tele.Bot) {
	a.bot.Store(b)
}

// SetHandler sets the event consumer.
func (a *Adapter) SetHandler(h Handler) {
	a.handler.Store(handlerBox{h})
}

type handlerBox struct{ h Handler }

func (a *Adapter) dispatch(c tele.Context, ev bot.Event) error {
	box, _ := a.handler.Load().(handlerBox)
	if box.h == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	return box.h.Handle(ctx, ev)
}

// Command returns the handler for /name.
func (a *Adapter) Command(name string) tele.HandlerFunc {
	name = strings.TrimPrefix(name, "/")
	return func(c tele.Context) error {
		ev := baseEvent(c, bot.KindCommand)
		ev.Command = name
		if m := c.Message(); m != nil {
			ev.Text = m.Text
			ev.Args = m.Payload
			if ev.Args == "" {
				ev.Args = commandArgs(m.Text)
			}
		}
		return a.dispatch(c, ev)
	}
}

// Callback handles every namespace|value button press.
func (a *Adapter) Callback() tele.HandlerFunc {
	return func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		ev := baseEvent(c, bot.KindCallback)
		ev.CallbackID = cb.ID
		ns, value := callbacks.ParseCallbackData(cb)
		ev.Data = callbacks.Encode(ns, value)
		if cb.Message != nil {
			ev.MessageID = cb.Message.ID
			if cb.Message.Chat != nil {
				ev.ChatID = cb.Message.Chat.ID
			}
		}
		return a.dispatch(c, ev)
	}
}

// Message handles plain text and media.
func (a *Adapter) Message() tele.HandlerFunc {
	return func(c tele.Context) error {
		ev := baseEvent(c, bot.KindMessage)
		if m := c.Message(); m != nil {
			ev.Text = m.Text
			if ev.Text == "" {
				ev.Text = m.Caption
			}
			ev.Media = mediaOf(m)
		}
		return a.dispatch(c, ev)
	}
}

// UnknownText routes unmatched text to the engine, which answers with the
// use-a-command notice when no flow is open.
func (a *Adapter) UnknownText() tele.HandlerFunc { return a.Message() }

// UnknownCallback routes unmatched buttons to the engine so they are answered once.
func (a *Adapter) UnknownCallback() tele.HandlerFunc { return a.Callback() }

func baseEvent(c tele.Context, kind bot.Kind) bot.Event {
	ev := bot.Event{Kind: kind}
	if u := c.Sender(); u != nil {
		ev.UserID = u.ID
	}
	if ch := c.Chat(); ch != nil {
		ev.ChatID = ch.ID
	}
	if ev.ChatID == 0 {
		ev.ChatID = ev.UserID
	}
	return ev
}

func commandArgs(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	i := strings.IndexAny(text, " \n\t")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(text[i:])
}

func mediaOf(m *tele.Message) *bot.Media {
	switch {
	case m.Photo != nil:
		return &bot.Media{Kind: broadcast.KindPhoto, FileID: m.Photo.FileID, Image: true, Ext: ".jpg"}
	case m.Document != nil:
		d := m.Document
		return &bot.Media{
			Kind:   broadcast.KindDocument,
			FileID: d.FileID,
			Image:  strings.HasPrefix(strings.ToLower(d.MIME), "image/"),
			Ext:    strings.ToLower(filepath.Ext(d.FileName)),
		}
	case m.Video != nil:
		return &bot.Media{Kind: broadcast.KindVideo, FileID: m.Video.FileID}
	}
	return nil
}

func (a *Adapter) live() (*tele.Bot, error) {
	b := a.bot.Load()
	if b == nil {
		return nil, ErrNotAttached
	}
	return b, nil
}

func sendOptions(m bot.Message) *tele.SendOptions {
	opts := &tele.SendOptions{}
	if m.Markdown {
		opts.ParseMode = tele.ModeMarkdownV2
	}
	if len(m.Keyboard) > 0 {
		opts.ReplyMarkup = markup(m.Keyboard)
	}
	return opts
}

func markup(kb bot.Keyboard) *tele.ReplyMarkup {
	rows := make([][]keyboard.InlineBtn, 0, len(kb))
	for _, row := range kb {
		r := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			r = append(r, keyboard.InlineBtn{Text: b.Text, Data: b.Data})
		}
		rows = append(rows, r)
	}
	return keyboard.InlineButtonsRows(rows...)
}

// Send implements bot.Responder.
func (a *Adapter) Send(ctx context.Context, chatID int64, m bot.Message) error {
	b, err := a.live()
	if err != nil {
		return err
	}
	return tghelpers.Dispatch(ctx, "send.text", "sendMessage", func() error {
		_, err := b.Send(tele.ChatID(chatID), m.Text, sendOptions(m))
		return err
	})
}

// SendPhoto implements bot.Responder.
func (a *Adapter) SendPhoto(ctx context.Context, chatID int64, png []byte, m bot.Message) error {
	b, err := a.live()
	if err != nil {
		return err
	}
	return tghelpers.Dispatch(ctx, "send.photo", "sendPhoto", func() error {
		photo := &tele.Photo{File: tele.FromReader(bytes.NewReader(png)), Caption: m.Text}
		_, err := b.Send(tele.ChatID(chatID), photo, sendOptions(m))
		return err
	})
}

// Edit implements bot.Responder.
func (a *Adapter) Edit(ctx context.Context, chatID int64, messageID int, m bot.Message) error {
	b, err := a.live()
	if err != nil {
		return err
	}
	msg := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	return tghelpers.Dispatch(ctx, "edit.text", "editMessageText", func() error {
		_, err := b.Edit(msg, m.Text, sendOptions(m))
		if errors.Is(err, tele.ErrSameMessageContent) {
			return nil
		}
		return err
	})
}

// Answer implements bot.Responder.
func (a *Adapter) Answer(ctx context.Context, callbackID, text string, alert bool) error {
	b, err := a.live()
	if err != nil {
		return err
	}
	if callbackID == "" {
		return nil
	}
	return tghelpers.Dispatch(ctx, "callback.answer", "answerCallbackQuery", func() error {
		return b.Respond(&tele.Callback{ID: callbackID}, &tele.CallbackResponse{Text: text, ShowAlert: alert})
	})
}

// Download implements bot.Downloader.
func (a *Adapter) Download(_ context.Context, fileID, dst string) error {
	b, err := a.live()
	if err != nil {
		return err
	}
	if err := b.Download(&tele.File{FileID: fileID}, dst); err != nil {
		return fmt.Errorf("telegramio: download: %w", err)
	}
	return nil
}

// Deliver sends one broadcast synchronously, bypassing the outbound queue so
// that flood replies reach the pacer as broadcast.RateLimitError.
func (a *Adapter) Deliver(_ context.Context, userID int64, c broadcast.Content) error {
	b, err := a.live()
	if err != nil {
		return err
	}
	var what any
	switch c.Kind {
	case broadcast.KindPhoto:
		what = &tele.Photo{File: tele.File{FileID: c.FileID}, Caption: c.Text}
	case broadcast.KindVideo:
		what = &tele.Video{File: tele.File{FileID: c.FileID}, Caption: c.Text}
	case broadcast.KindDocument:
		what = &tele.Document{File: tele.File{FileID: c.FileID}, Caption: c.Text}
	default:
		what = c.Text
	}
	_, err = b.Send(tele.ChatID(userID), what)
	return asRateLimit(err)
}

func asRateLimit(err error) error {
	if wait, ok := tgsender.FloodWait(err); ok {
		return &broadcast.RateLimitError{RetryAfter: wait}
	}
	return err
}
