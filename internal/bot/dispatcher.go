// Package bot is the conversation engine: it routes commands, button presses
// and plain messages to the per-user flows and drives their side effects.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/quicklink/core/logger"
	"github.com/m3rciful/quicklink/core/telegram/callbacks"
	"github.com/m3rciful/quicklink/core/telegram/state"
	"github.com/m3rciful/quicklink/internal/broadcast"
	"github.com/m3rciful/quicklink/internal/flow"
	"github.com/m3rciful/quicklink/internal/storage"
	"github.com/m3rciful/quicklink/internal/tempfile"
)

// Callback namespaces.
const (
	NSQRType   = "qrtype"
	NSWiFiSec  = "wifisec"
	NSAlias    = "alias"
	NSFallback = "qrfb"
	NSBcast    = "bc"
	NSFeature  = "ft"
)

// Commands without slash, as routed to Handle.
const (
	CmdStart     = "start"
	CmdState     = "state"
	CmdChat      = "chat"
	CmdAdmin     = "admin"
	CmdBroadcast = "broadcast"
	CmdQRGen     = "qrgen"
	CmdQRScan    = "qrscan"
	CmdShorten   = "shorten"
	CmdOwner     = "owner"
)

// Deps are the collaborators of the dispatcher.
type Deps struct {
	Sessions  *state.Store
	Store     *storage.BestEffort
	Out       Responder
	Files     Downloader
	Temp      *tempfile.Dir
	Codec     Codec
	Remote    RemoteDecoder
	Shortener Shortener
	Chat      ChatRelay
	// Deliver sends one broadcast to one recipient.
	Deliver broadcast.SendFunc
}

// Options tune the flows.
type Options struct {
	OwnerID   int64
	OwnerName string
	OwnerURL  string
	// ContactURL is shown by /owner next to the owner link.
	ContactURL string

	StartedAt      time.Time
	Now            Clock
	ScanTimeout    time.Duration
	ContentTimeout time.Duration
	// Retention bounds waits that have no user-facing timeout, such as the
	// fallback consent holding a downloaded image.
	Retention time.Duration
	Broadcast broadcast.Options
}

// Dispatcher routes events. It is safe for concurrent use.
type Dispatcher struct {
	deps Deps
	opts Options

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates deps and fills option defaults.
func New(deps Deps, opts Options) (*Dispatcher, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errors.New("bot: session store is required")
	case deps.Store == nil:
		return nil, errors.New("bot: storage is required")
	case deps.Out == nil:
		return nil, errors.New("bot: responder is required")
	case opts.OwnerID == 0:
		return nil, errors.New("bot: owner id is required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = opts.Now()
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 60 * time.Second
	}
	if opts.ContentTimeout <= 0 {
		opts.ContentTimeout = 300 * time.Second
	}
	if opts.Retention <= 0 {
		opts.Retention = 5 * time.Minute
	}
	if deps.Temp == nil {
		deps.Temp = tempfile.NewDir("", opts.Retention)
	}
	base, cancel := context.WithCancel(context.Background())
	return &Dispatcher{deps: deps, opts: opts, base: base, cancel: cancel}, nil
}

// Wait blocks until background broadcasts finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops running broadcasts and drops every open session.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
	d.deps.Sessions.Close()
}

// Handle routes one event. Errors are outbound failures; user mistakes are
// answered in the conversation and never returned.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case KindCommand:
		return d.handleCommand(ctx, ev)
	case KindCallback:
		return d.handleCallback(ctx, ev)
	case KindMessage:
		return d.handleMessage(ctx, ev)
	}
	return nil
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev Event) error {
	d.deps.Store.RegisterUser(ctx, ev.UserID)
	switch strings.ToLower(ev.Command) {
	case CmdStart:
		return d.cmdStart(ctx, ev)
	case CmdState, "stats":
		return d.cmdState(ctx, ev)
	case CmdOwner:
		return d.cmdOwner(ctx, ev)
	case CmdChat:
		return d.cmdChat(ctx, ev)
	case CmdAdmin:
		return d.cmdAdmin(ctx, ev)
	case CmdBroadcast:
		return d.startBroadcast(ctx, ev)
	case CmdQRGen:
		return d.startQRGen(ctx, ev)
	case CmdQRScan:
		return d.startQRScan(ctx, ev)
	case CmdShorten, "shortner":
		return d.startShorten(ctx, ev)
	}
	return d.send(ctx, ev.ChatID, txtUseCommand)
}

// answer collects the single response to a callback query.
type answer struct {
	text  string
	alert bool
}

func (d *Dispatcher) handleCallback(ctx context.Context, ev Event) (err error) {
	ans := &answer{}
	defer func() {
		if aerr := d.deps.Out.Answer(ctx, ev.CallbackID, ans.text, ans.alert); aerr != nil && err == nil {
			err = aerr
		}
	}()

	ns, value := callbacks.Split(ev.Data)
	switch ns {
	case NSQRType:
		return d.onQRType(ctx, ev, value, ans)
	case NSWiFiSec:
		return d.onWiFiSecurity(ctx, ev, value, ans)
	case NSFallback:
		return d.onFallback(ctx, ev, value, ans)
	case NSAlias:
		return d.onAlias(ctx, ev, value, ans)
	case NSBcast:
		return d.onBroadcastChoice(ctx, ev, value, ans)
	case NSFeature:
		return d.onFeatureToggle(ctx, ev, value, ans)
	}
	ans.text = txtUnsupported
	return nil
}

func (d *Dispatcher) handleMessage(ctx context.Context, ev Event) error {
	sess, ok := d.deps.Sessions.Get(ev.UserID)
	if !ok {
		return d.send(ctx, ev.ChatID, txtUseCommand)
	}
	ctx = logger.WithFlow(ctx, sess.Flow, sess.Step)
	switch sess.Flow {
	case flow.QRGen:
		return d.onQRGenMessage(ctx, ev, sess)
	case flow.QRScan:
		return d.onQRScanMessage(ctx, ev, sess)
	case flow.Shorten:
		return d.onShortenMessage(ctx, ev, sess)
	case flow.Broadcast:
		return d.onBroadcastMessage(ctx, ev, sess)
	}
	return d.send(ctx, ev.ChatID, txtUseCommand)
}

// sessionExpired answers a stale button by editing its message.
func (d *Dispatcher) sessionExpired(ctx context.Context, ev Event) error {
	logger.Debug(ctx, "flow", "callback.stale",
		slog.Int64("user_id", ev.UserID),
		slog.String("payload", ev.Data),
	)
	return d.edit(ctx, ev, Message{Text: txtSessionExpired})
}

func (d *Dispatcher) isOwner(userID int64) bool {
	return userID == d.opts.OwnerID
}

func (d *Dispatcher) enabled(ctx context.Context, f storage.Feature) bool {
	return d.deps.Store.Enabled(ctx, f)
}

func (d *Dispatcher) start(ctx context.Context, ev Event, flowName, step string) state.Session {
	sess := d.deps.Sessions.Start(state.Session{
		UserID: ev.UserID,
		ChatID: ev.ChatID,
		Flow:   flowName,
		Step:   step,
	})
	logger.Info(logger.WithFlow(ctx, flowName, step), "flow", "flow.start",
		slog.Int64("user_id", ev.UserID),
	)
	return sess
}

func (d *Dispatcher) finish(ctx context.Context, sess state.Session, outcome string) {
	logger.Info(logger.WithFlow(ctx, sess.Flow, sess.Step), "flow", "flow.finish",
		slog.Int64("user_id", sess.UserID),
		slog.String("outcome", outcome),
	)
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string) error {
	return d.deps.Out.Send(ctx, chatID, Message{Text: text})
}

func (d *Dispatcher) edit(ctx context.Context, ev Event, m Message) error {
	if ev.MessageID == 0 {
		return d.deps.Out.Send(ctx, ev.ChatID, m)
	}
	return d.deps.Out.Edit(ctx, ev.ChatID, ev.MessageID, m)
}

func inFlow(flowName string, steps ...string) func(state.Session) bool {
	return func(s state.Session) bool { return s.Is(flowName, steps...) }
}

var errNoDownloader = errors.New("bot: no file downloader configured")
