package bot

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/quicklink/core/telegram/state"
	"github.com/m3rciful/quicklink/internal/broadcast"
	"github.com/m3rciful/quicklink/internal/storage"
	"github.com/m3rciful/quicklink/internal/tempfile"
)

const (
	ownerID = int64(1)
	userID  = int64(42)
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type sent struct {
	op      string
	chatID  int64
	msgID   int
	text    string
	kb      Keyboard
	png     []byte
	alert   bool
	cbID    string
	markdwn bool
}

type fakeOut struct {
	mu    sync.Mutex
	calls []sent
}

func (f *fakeOut) record(s sent) error {
	f.mu.Lock()
	f.calls = append(f.calls, s)
	f.mu.Unlock()
	return nil
}

func (f *fakeOut) Send(_ context.Context, chatID int64, m Message) error {
	return f.record(sent{op: "send", chatID: chatID, text: m.Text, kb: m.Keyboard, markdwn: m.Markdown})
}

func (f *fakeOut) SendPhoto(_ context.Context, chatID int64, png []byte, m Message) error {
	return f.record(sent{op: "photo", chatID: chatID, text: m.Text, png: png, markdwn: m.Markdown})
}

func (f *fakeOut) Edit(_ context.Context, chatID int64, messageID int, m Message) error {
	return f.record(sent{op: "edit", chatID: chatID, msgID: messageID, text: m.Text, kb: m.Keyboard, markdwn: m.Markdown})
}

func (f *fakeOut) Answer(_ context.Context, callbackID, text string, alert bool) error {
	return f.record(sent{op: "answer", cbID: callbackID, text: text, alert: alert})
}

func (f *fakeOut) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.calls...)
}

func (f *fakeOut) last(op string) (sent, bool) {
	calls := f.all()
	for i := len(calls) - 1; i >= 0; i-- {
		if calls[i].op == op {
			return calls[i], true
		}
	}
	return sent{}, false
}

func (f *fakeOut) count(op string) int {
	n := 0
	for _, c := range f.all() {
		if c.op == op {
			n++
		}
	}
	return n
}

type fakeCodec struct {
	mu       sync.Mutex
	encoded  []string
	decoded  []string
	decodeFn func(path string) ([]string, error)
}

func (c *fakeCodec) Encode(text string) ([]byte, error) {
	c.mu.Lock()
	c.encoded = append(c.encoded, text)
	c.mu.Unlock()
	return []byte("png:" + text), nil
}

func (c *fakeCodec) DecodeFile(path string) ([]string, error) {
	c.mu.Lock()
	c.decoded = append(c.decoded, path)
	c.mu.Unlock()
	if c.decodeFn != nil {
		return c.decodeFn(path)
	}
	return nil, nil
}

type fakeRemote struct {
	texts []string
	err   error
	paths []string
}

func (r *fakeRemote) DecodeFile(_ context.Context, path string) ([]string, error) {
	r.paths = append(r.paths, path)
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return r.texts, r.err
}

type fakeFiles struct{}

func (fakeFiles) Download(_ context.Context, fileID, dst string) error {
	return os.WriteFile(dst, []byte(fileID), 0o600)
}

type shortenCall struct{ long, alias string }

type fakeShortener struct {
	calls []shortenCall
	short string
	err   error
}

func (s *fakeShortener) Shorten(_ context.Context, long, alias string) (string, error) {
	s.calls = append(s.calls, shortenCall{long, alias})
	return s.short, s.err
}

type fakeChat struct {
	reply string
	err   error
	asked []string
}

func (c *fakeChat) Configured() bool { return true }

func (c *fakeChat) Ask(_ context.Context, text string) (string, error) {
	c.asked = append(c.asked, text)
	return c.reply, c.err
}

type harness struct {
	d        *Dispatcher
	out      *fakeOut
	store    *storage.BestEffort
	sessions *state.Store
	codec    *fakeCodec
	remote   *fakeRemote
	short    *fakeShortener
	chat     *fakeChat
	tempDir  string
}

func newHarness(t *testing.T, deliver broadcast.SendFunc, bopts broadcast.Options, tweaks ...func(*Options)) *harness {
	t.Helper()
	fs, err := storage.OpenFile(t.TempDir() + "/store.json")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	h := &harness{
		out:      &fakeOut{},
		store:    storage.NewBestEffort(fs),
		sessions: state.NewStore(),
		codec:    &fakeCodec{},
		remote:   &fakeRemote{texts: []string{"from-remote"}},
		short:    &fakeShortener{short: "https://ql.ink/abc"},
		chat:     &fakeChat{reply: "hi there"},
		tempDir:  t.TempDir(),
	}
	opts := Options{
		OwnerID:   ownerID,
		OwnerName: "Owner",
		StartedAt: testNow.Add(-90 * time.Second),
		Now:       func() time.Time { return testNow },
		Broadcast: bopts,
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}
	d, err := New(Deps{
		Sessions:  h.sessions,
		Store:     h.store,
		Out:       h.out,
		Files:     fakeFiles{},
		Temp:      tempfile.NewDir(h.tempDir, time.Minute),
		Codec:     h.codec,
		Remote:    h.remote,
		Shortener: h.short,
		Chat:      h.chat,
		Deliver:   deliver,
	}, opts)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	t.Cleanup(d.Close)
	h.d = d
	return h
}

func (h *harness) command(t *testing.T, from int64, name, args string) {
	t.Helper()
	ev := Event{Kind: KindCommand, UserID: from, ChatID: from, Command: name, Args: args}
	if err := h.d.Handle(context.Background(), ev); err != nil {
		t.Fatalf("command %s: %v", name, err)
	}
}

func (h *harness) text(t *testing.T, from int64, text string) {
	t.Helper()
	ev := Event{Kind: KindMessage, UserID: from, ChatID: from, Text: text}
	if err := h.d.Handle(context.Background(), ev); err != nil {
		t.Fatalf("message %q: %v", text, err)
	}
}

func (h *harness) media(t *testing.T, from int64, m *Media, caption string) {
	t.Helper()
	ev := Event{Kind: KindMessage, UserID: from, ChatID: from, Text: caption, Media: m}
	if err := h.d.Handle(context.Background(), ev); err != nil {
		t.Fatalf("media: %v", err)
	}
}

func (h *harness) press(t *testing.T, from int64, data string) {
	t.Helper()
	ev := Event{Kind: KindCallback, UserID: from, ChatID: from, MessageID: 7, CallbackID: "cb-" + data, Data: data}
	if err := h.d.Handle(context.Background(), ev); err != nil {
		t.Fatalf("press %s: %v", data, err)
	}
}

func (h *harness) stat(c storage.Counter) int64 {
	return h.store.Stats(context.Background())[c]
}

// waitSent polls until a send with text arrives or the deadline passes.
func (h *harness) waitSent(t *testing.T, text string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		for _, c := range h.out.all() {
			if c.op == "send" && c.text == text {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no send with text %q; calls = %+v", text, h.out.all())
}
