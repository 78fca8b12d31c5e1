package bot

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/quicklink/core/telegram/format"
	"github.com/m3rciful/quicklink/internal/broadcast"
	"github.com/m3rciful/quicklink/internal/flow"
	"github.com/m3rciful/quicklink/internal/storage"
)

func TestShortenWithManualAlias(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, CmdShorten, "")
	h.text(t, userID, "https://example.com/very/long")
	h.press(t, userID, "alias|manual")
	if got, _ := h.out.last("edit"); got.text != txtTypeAlias {
		t.Fatalf("edit = %q, want alias prompt", got.text)
	}
	h.text(t, userID, "promo")

	if len(h.short.calls) != 1 {
		t.Fatalf("shortener calls = %d, want 1", len(h.short.calls))
	}
	if c := h.short.calls[0]; c.long != "https://example.com/very/long" || c.alias != "promo" {
		t.Fatalf("call = %+v", c)
	}
	if got, _ := h.out.last("send"); got.text != txtShortened+"https://ql.ink/abc" {
		t.Fatalf("reply = %q", got.text)
	}
	if n := h.stat(storage.CounterShorten); n != 1 {
		t.Fatalf("shorten counter = %d, want 1", n)
	}
	recent := h.store.RecentURLs(context.Background(), storage.RecentURLShown)
	if len(recent) != 1 || recent[0].URL != "https://ql.ink/abc" {
		t.Fatalf("recent = %+v", recent)
	}
	if h.sessions.Len() != 0 {
		t.Fatal("session should be closed")
	}
}

func TestShortenSkipUsesRandomAlias(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, "shortner", "")
	h.text(t, userID, "http://example.com")
	h.press(t, userID, "alias|skip")

	if len(h.short.calls) != 1 || h.short.calls[0].alias != "" {
		t.Fatalf("calls = %+v", h.short.calls)
	}
	if got, _ := h.out.last("edit"); got.text != txtShortened+"https://ql.ink/abc" {
		t.Fatalf("edit = %q", got.text)
	}
}

func TestShortenInvalidURLNeverReachesAdapter(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, CmdShorten, "")
	for _, bad := range []string{"example.com", "ftp://example.com", "   "} {
		h.text(t, userID, bad)
		if got, _ := h.out.last("send"); got.text != txtInvalidURL {
			t.Fatalf("reply for %q = %q", bad, got.text)
		}
	}
	if len(h.short.calls) != 0 {
		t.Fatalf("shortener called %d times", len(h.short.calls))
	}
	sess, ok := h.sessions.Get(userID)
	if !ok || sess.Step != flow.StepAwaitURL {
		t.Fatalf("session = %+v, %v", sess, ok)
	}
}

func TestShortenFailureShowsAdapterMessage(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})
	h.short.err = errString("Alias already taken")

	h.command(t, userID, CmdShorten, "")
	h.text(t, userID, "https://example.com")
	h.text(t, userID, "taken")

	if got, _ := h.out.last("send"); got.text != txtShortenError+"Alias already taken" {
		t.Fatalf("reply = %q", got.text)
	}
	if n := h.stat(storage.CounterShorten); n != 0 {
		t.Fatalf("counter = %d, want 0", n)
	}
}

func TestQRScanFallsBackToRemote(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, CmdQRScan, "")
	h.media(t, userID, &Media{Kind: broadcast.KindPhoto, FileID: "photo-1", Image: true}, "")

	if got, _ := h.out.last("send"); got.text != txtFallbackOffer {
		t.Fatalf("reply = %q, want fallback offer", got.text)
	}
	if n := h.stat(storage.CounterQRScan); n != 0 {
		t.Fatalf("counter before fallback = %d", n)
	}
	h.press(t, userID, "qrfb|yes")

	got, _ := h.out.last("edit")
	if !strings.HasSuffix(got.text, format.Code("from-remote")) || !got.markdwn {
		t.Fatalf("edit = %+v", got)
	}
	if n := h.stat(storage.CounterQRScan); n != 1 {
		t.Fatalf("counter = %d, want 1", n)
	}
	entries, err := os.ReadDir(h.tempDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("temp files left: %d", len(entries))
	}
}

func TestQRScanLocalDecode(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})
	h.codec.decodeFn = func(string) ([]string, error) { return []string{"hello"}, nil }

	h.command(t, userID, CmdQRScan, "")
	h.media(t, userID, &Media{Kind: broadcast.KindDocument, FileID: "doc", Image: true, Ext: ".png"}, "")

	got, _ := h.out.last("send")
	if !strings.HasPrefix(got.text, escape(txtLocalDecoded)) || !strings.Contains(got.text, "hello") {
		t.Fatalf("reply = %q", got.text)
	}
	if len(h.remote.paths) != 0 {
		t.Fatal("remote decoder should not be used")
	}
	if n := h.stat(storage.CounterQRScan); n != 1 {
		t.Fatalf("counter = %d, want 1", n)
	}
	if h.sessions.Len() != 0 {
		t.Fatal("session should be closed")
	}
}

func TestQRScanNonImageCancels(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, CmdQRScan, "")
	h.text(t, userID, "not a picture")

	if got, _ := h.out.last("send"); got.text != txtNoImage {
		t.Fatalf("reply = %q", got.text)
	}
	if h.sessions.Len() != 0 {
		t.Fatal("session should be closed")
	}
}

func TestQRScanDeclineReleasesImage(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, CmdQRScan, "")
	h.media(t, userID, &Media{Kind: broadcast.KindPhoto, FileID: "p", Image: true}, "")
	h.press(t, userID, "qrfb|no")

	if got, _ := h.out.last("edit"); got.text != txtCancelled {
		t.Fatalf("edit = %q", got.text)
	}
	entries, _ := os.ReadDir(h.tempDir)
	if len(entries) != 0 {
		t.Fatalf("temp files left: %d", len(entries))
	}
}

func TestQRGenWiFi(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, CmdQRGen, "")
	h.press(t, userID, "qrtype|wifi")
	h.text(t, userID, "home")
	h.text(t, userID, flow.Skip)
	if got, _ := h.out.last("send"); len(got.kb) != len(flow.Securities) {
		t.Fatalf("security prompt keyboard = %+v", got.kb)
	}
	h.press(t, userID, "wifisec|NONE")

	if len(h.codec.encoded) != 1 || h.codec.encoded[0] != "WIFI:T:;S:home;P:;;" {
		t.Fatalf("encoded = %q", h.codec.encoded)
	}
	photo, ok := h.out.last("photo")
	if !ok || string(photo.png) != "png:WIFI:T:;S:home;P:;;" {
		t.Fatalf("photo = %+v", photo)
	}
	if n := h.stat(storage.CounterQRGen); n != 1 {
		t.Fatalf("counter = %d, want 1", n)
	}
}

func TestQRGenRequiredFieldReprompts(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, CmdQRGen, "")
	h.press(t, userID, "qrtype|phone")
	h.text(t, userID, "  ")
	sess, _ := h.sessions.Get(userID)
	if sess.Step != flow.FieldPhone {
		t.Fatalf("step = %q, want phone", sess.Step)
	}
	h.text(t, userID, "+15550100")
	if len(h.codec.encoded) != 1 || h.codec.encoded[0] != "tel:+15550100" {
		t.Fatalf("encoded = %q", h.codec.encoded)
	}
}

func TestFeatureFlagGatesFlows(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})
	ctx := context.Background()
	for _, f := range []storage.Feature{storage.FeatureQRGen, storage.FeatureQRScan, storage.FeatureShorten} {
		h.store.Toggle(ctx, f)
	}

	cases := map[string]string{
		CmdQRGen:   txtQRGenDisabled,
		CmdQRScan:  txtQRScanDisabled,
		CmdShorten: txtShortenDisabled,
	}
	for cmd, want := range cases {
		h.command(t, userID, cmd, "")
		if got, _ := h.out.last("send"); got.text != want {
			t.Fatalf("/%s reply = %q, want %q", cmd, got.text, want)
		}
		if h.sessions.Len() != 0 {
			t.Fatalf("/%s opened a session", cmd)
		}
	}
}

func TestSingleSessionPerUser(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, CmdQRGen, "")
	h.command(t, userID, CmdShorten, "")
	if h.sessions.Len() != 1 {
		t.Fatalf("sessions = %d, want 1", h.sessions.Len())
	}
	sess, _ := h.sessions.Get(userID)
	if sess.Flow != flow.Shorten {
		t.Fatalf("flow = %q, want shorten", sess.Flow)
	}

	h.press(t, userID, "qrtype|text")
	if got, _ := h.out.last("edit"); got.text != txtSessionExpired {
		t.Fatalf("stale button edit = %q", got.text)
	}
	if sess, _ := h.sessions.Get(userID); sess.Flow != flow.Shorten || sess.Step != flow.StepAwaitURL {
		t.Fatalf("stale button mutated session: %+v", sess)
	}
}

func TestCallbackAnsweredOnce(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.press(t, userID, "alias|skip")
	h.press(t, userID, "nope|x")
	h.press(t, userID, "ft|qrgen")

	if n := h.out.count("answer"); n != 3 {
		t.Fatalf("answers = %d, want 3", n)
	}
	got, _ := h.out.last("answer")
	if got.text != txtNotAllowed || !got.alert {
		t.Fatalf("non-owner toggle answer = %+v", got)
	}
	if !h.store.Enabled(context.Background(), storage.FeatureQRGen) {
		t.Fatal("non-owner toggled a feature")
	}
}

func TestMessageWithoutSession(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})
	h.text(t, userID, "hello?")
	if got, _ := h.out.last("send"); got.text != txtUseCommand {
		t.Fatalf("reply = %q", got.text)
	}
}

func TestAdminToggle(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, CmdAdmin, "")
	if got, _ := h.out.last("send"); got.text != txtNotOwner {
		t.Fatalf("non-owner admin = %q", got.text)
	}

	h.command(t, ownerID, CmdAdmin, "")
	panel, _ := h.out.last("send")
	if len(panel.kb) != len(storage.Features) || panel.kb[1][0].Text != "QRGen: ON" {
		t.Fatalf("panel = %+v", panel.kb)
	}
	h.press(t, ownerID, "ft|qrgen")
	edit, _ := h.out.last("edit")
	if edit.text != txtFeatureToggled || edit.kb[1][0].Text != "QRGen: OFF" {
		t.Fatalf("edit = %+v", edit)
	}
	if h.store.Enabled(context.Background(), storage.FeatureQRGen) {
		t.Fatal("feature still on")
	}
}

func TestInfoCommands(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, CmdStart, "")
	if got, _ := h.out.last("send"); !strings.Contains(got.text, "Uptime: 00h 01m 30s") {
		t.Fatalf("start = %q", got.text)
	}
	h.command(t, userID, "stats", "")
	if got, _ := h.out.last("send"); !strings.Contains(got.text, "No recent URLs") {
		t.Fatalf("state = %q", got.text)
	}
	h.command(t, userID, CmdChat, "")
	if got, _ := h.out.last("send"); got.text != txtChatUsage {
		t.Fatalf("chat usage = %q", got.text)
	}
	h.command(t, userID, CmdChat, "where is my link?")
	if got, _ := h.out.last("send"); got.text != "🧠 Support: hi there" {
		t.Fatalf("chat = %q", got.text)
	}
}

func TestUptime(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "00h 00m 00s"},
		{90 * time.Second, "00h 01m 30s"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1d 02h 03m 04s"},
		{-time.Second, "00h 00m 00s"},
	}
	for _, tc := range cases {
		if got := Uptime(tc.in); got != tc.want {
			t.Fatalf("Uptime(%s) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestBroadcastRetriesRateLimitedRecipient(t *testing.T) {
	var mu sync.Mutex
	attempts := map[int64]int{}
	var slept []time.Duration
	deliver := func(_ context.Context, id int64, c broadcast.Content) error {
		mu.Lock()
		defer mu.Unlock()
		attempts[id]++
		if id == 2 && attempts[id] == 1 {
			return &broadcast.RateLimitError{RetryAfter: time.Second}
		}
		return nil
	}
	h := newHarness(t, deliver, broadcast.Options{
		Budget:     time.Millisecond,
		MinDelay:   time.Millisecond,
		MaxDelay:   time.Millisecond,
		MaxBackoff: 10 * time.Millisecond,
		Sleep: func(_ context.Context, d time.Duration) error {
			mu.Lock()
			slept = append(slept, d)
			mu.Unlock()
			return nil
		},
	})
	h.command(t, 2, CmdStart, "")
	h.command(t, 3, CmdStart, "")

	h.command(t, ownerID, CmdBroadcast, "")
	h.text(t, ownerID, "New feature!")
	if got, _ := h.out.last("send"); got.text != txtBroadcastPreview {
		t.Fatalf("preview = %q", got.text)
	}
	h.press(t, ownerID, "bc|confirm")
	h.d.Wait()

	got, _ := h.out.last("edit")
	if !strings.HasPrefix(got.text, "Broadcast completed. Sent: 3, Failed: 0, Total: 3.") {
		t.Fatalf("report = %q", got.text)
	}
	mu.Lock()
	defer mu.Unlock()
	if attempts[2] != 2 || attempts[1] != 1 || attempts[3] != 1 {
		t.Fatalf("attempts = %v", attempts)
	}
	if len(slept) != 1 || slept[0] != 10*time.Millisecond {
		t.Fatalf("slept = %v", slept)
	}
	if _, ok := h.store.LastBroadcast(context.Background()); !ok {
		t.Fatal("last broadcast not recorded")
	}
}

func TestBroadcastOwnerOnly(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{})

	h.command(t, userID, CmdBroadcast, "")
	if got, _ := h.out.last("send"); got.text != txtBroadcastNotOwner {
		t.Fatalf("reply = %q", got.text)
	}
	if h.sessions.Len() != 0 {
		t.Fatal("non-owner opened a broadcast")
	}
	h.press(t, userID, "bc|confirm")
	if got, _ := h.out.last("answer"); got.text != txtNotAllowed {
		t.Fatalf("answer = %q", got.text)
	}
}

func TestBroadcastCancel(t *testing.T) {
	var calls int
	deliver := func(context.Context, int64, broadcast.Content) error {
		calls++
		return nil
	}
	h := newHarness(t, deliver, broadcast.Options{})

	h.command(t, ownerID, CmdBroadcast, "")
	h.media(t, ownerID, &Media{Kind: broadcast.KindPhoto, FileID: "pic", Image: true}, "caption")
	sess, _ := h.sessions.Get(ownerID)
	if sess.Value(fieldBcKind) != string(broadcast.KindPhoto) || sess.Value(fieldBcFileID) != "pic" {
		t.Fatalf("captured = %+v", sess.Fields)
	}
	h.press(t, ownerID, "bc|cancel")
	h.d.Wait()
	if got, _ := h.out.last("edit"); got.text != txtBroadcastStopped {
		t.Fatalf("edit = %q", got.text)
	}
	if calls != 0 {
		t.Fatalf("deliveries = %d", calls)
	}
}

type errString string

func (e errString) Error() string { return string(e) }

func TestQRScanTimeoutClosesSession(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{}, func(o *Options) { o.ScanTimeout = 20 * time.Millisecond })
	h.command(t, userID, CmdQRScan, "")
	if _, ok := h.sessions.Get(userID); !ok {
		t.Fatal("scan session not opened")
	}
	h.waitSent(t, txtScanTimeout)
	if _, ok := h.sessions.Get(userID); ok {
		t.Fatal("session still present after timeout")
	}

	h.text(t, userID, "late")
	if got, _ := h.out.last("send"); got.text != txtUseCommand {
		t.Fatalf("late message reply = %q", got.text)
	}
}

func TestBroadcastContentTimeoutClosesSession(t *testing.T) {
	h := newHarness(t, nil, broadcast.Options{}, func(o *Options) { o.ContentTimeout = 20 * time.Millisecond })
	h.command(t, ownerID, CmdBroadcast, "")
	if _, ok := h.sessions.Get(ownerID); !ok {
		t.Fatal("broadcast session not opened")
	}
	h.waitSent(t, txtBroadcastTimeout)
	if _, ok := h.sessions.Get(ownerID); ok {
		t.Fatal("session still present after timeout")
	}
}
