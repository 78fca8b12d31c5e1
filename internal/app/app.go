// Package app wires configuration, storage, adapters and the conversation
// engine into a runnable Telegram application.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/m3rciful/quicklink/core/bootstrap"
	corecmd "github.com/m3rciful/quicklink/core/cmd"
	coretelegram "github.com/m3rciful/quicklink/core/telegram"
	"github.com/m3rciful/quicklink/core/telegram/commands"
	"github.com/m3rciful/quicklink/core/telegram/router"
	"github.com/m3rciful/quicklink/core/telegram/state"
	"github.com/m3rciful/quicklink/core/telegram/ui"
	"github.com/m3rciful/quicklink/internal/bot"
	"github.com/m3rciful/quicklink/internal/broadcast"
	"github.com/m3rciful/quicklink/internal/chatbase"
	"github.com/m3rciful/quicklink/internal/config"
	"github.com/m3rciful/quicklink/internal/qrapi"
	"github.com/m3rciful/quicklink/internal/qrcodec"
	"github.com/m3rciful/quicklink/internal/shortener"
	"github.com/m3rciful/quicklink/internal/status"
	"github.com/m3rciful/quicklink/internal/storage"
	"github.com/m3rciful/quicklink/internal/telegramio"
	"github.com/m3rciful/quicklink/internal/tempfile"
)

// App is the assembled bot.
type App struct {
	cfg      *config.Config
	store    *storage.BestEffort
	sessions *state.Store
	io       *telegramio.Adapter
	engine   *bot.Dispatcher
	status   *status.Server
}

var (
	_ corecmd.TelegramApp = (*App)(nil)
	_ corecmd.ServiceApp  = (*App)(nil)
)

// Bootstrap is the corecmd.Options hook: it initialises logging, opens the
// storage backend, seeds the feature flags and builds the App.
func Bootstrap(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(context.Background(), bootstrap.Options[storage.Backend]{
		Config: cfg.CoreConfig(),
		Open: func(ctx context.Context) (storage.Backend, error) {
			return storage.Open(ctx, cfg.Storage)
		},
		Modules: bootstrap.Modules[storage.Backend]{
			Seeders: []bootstrap.Seeder[storage.Backend]{
				bootstrap.SeederFunc[storage.Backend](storage.SeedFeatures),
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, res.Storage)
}

// New builds the App on an opened backend. No network calls are made.
func New(cfg *config.Config, backend storage.Backend) (*App, error) {
	a := &App{
		cfg:      cfg,
		store:    storage.NewBestEffort(backend),
		sessions: state.NewStore(),
		io:       telegramio.New(),
	}
	startedAt := time.Now()

	temp := tempfile.NewDir(filepath.Join(os.TempDir(), "quicklink"), cfg.Flows.Retention)
	engine, err := bot.New(bot.Deps{
		Sessions:  a.sessions,
		Store:     a.store,
		Out:       a.io,
		Files:     a.io,
		Temp:      temp,
		Codec:     qrcodec.New(cfg.QR.Size),
		Remote:    qrapi.New(cfg.QR.DecodeAPI, cfg.QR.DecodeTimeout),
		Shortener: shortener.New(cfg.Shortener.Endpoint, cfg.Shortener.APIKey, cfg.Shortener.Timeout),
		Chat:      chatbase.New(cfg.Chatbase.Endpoint, cfg.Chatbase.APIKey, cfg.Chatbase.BotID, cfg.Chatbase.Timeout),
		Deliver:   a.io.Deliver,
	}, bot.Options{
		OwnerID:        cfg.Telegram.AdminID,
		OwnerName:      cfg.Status.OwnerName,
		OwnerURL:       cfg.Status.OwnerURL,
		ContactURL:     cfg.Status.ContactURL,
		StartedAt:      startedAt,
		ScanTimeout:    cfg.Flows.ScanTimeout,
		ContentTimeout: cfg.Flows.ContentTimeout,
		Retention:      cfg.Flows.Retention,
		Broadcast: broadcast.Options{
			Budget:     cfg.Broadcast.Budget,
			MinDelay:   cfg.Broadcast.MinDelay,
			MaxDelay:   cfg.Broadcast.MaxDelay,
			MaxBackoff: cfg.Broadcast.MaxBackoff,
			FloodPad:   cfg.Broadcast.FloodPad,
		},
	})
	if err != nil {
		return nil, err
	}
	a.engine = engine
	a.io.SetHandler(engine)
	if !cfg.Status.Disabled {
		a.status = status.New(cfg.Status, a.store, startedAt)
	}
	return a, nil
}

type commandSpec struct {
	name string
	desc string
	cmd  commands.Command
}

// Registry declares every command and callback namespace of the bot. A
// rejected registration is reported instead of leaving a command unrouted.
func (a *App) Registry() (*coretelegram.Registry, error) {
	specs := []commandSpec{
		{bot.CmdStart, "Help and uptime", commands.Command{}},
		{bot.CmdQRGen, "Generate a QR code", commands.Command{}},
		{bot.CmdQRScan, "Scan a QR code from an image", commands.Command{}},
		{bot.CmdShorten, "Shorten a URL", commands.Command{Aliases: []string{"shortner"}}},
		{bot.CmdState, "Bot stats", commands.Command{Aliases: []string{"stats"}}},
		{bot.CmdChat, "Ask support", commands.Command{}},
		{bot.CmdOwner, "Owner info", commands.Command{}},
		{bot.CmdAdmin, "Feature flags", commands.Command{AdminOnly: true, RejectText: bot.AdminRejectText}},
		{bot.CmdBroadcast, "Message every user", commands.Command{AdminOnly: true, RejectText: bot.BroadcastRejectText}},
	}
	namespaces := []string{bot.NSQRType, bot.NSWiFiSec, bot.NSAlias, bot.NSFallback, bot.NSBcast, bot.NSFeature}

	reg := coretelegram.NewRegistry()
	if err := a.register(reg, specs, namespaces); err != nil {
		return nil, err
	}
	ui.Install(reg, a.io)
	return reg, nil
}

func (a *App) register(reg *coretelegram.Registry, specs []commandSpec, namespaces []string) error {
	var errs []error
	for _, s := range specs {
		cmd := s.cmd
		cmd.Handler = a.io.Command(s.name)
		cmd.Description = s.desc
		errs = append(errs, reg.RegisterCommand("/"+s.name, cmd))
	}
	cb := a.io.Callback()
	for _, ns := range namespaces {
		errs = append(errs, reg.RegisterCallback(ns, cb))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("app: registry: %w", err)
	}
	return nil
}

// TelegramRunOptions implements corecmd.TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	cmdOpts := router.CommandRouteOptions{AdminID: core.Telegram.AdminID}
	reg, err := a.Registry()
	if err != nil {
		return coretelegram.RunOptions{}, err
	}
	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		BuildRoutes: func(reg *coretelegram.Registry) []coretelegram.Route {
			routes := router.CommandRoutes(reg, cmdOpts)
			routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
			routes = append(routes, router.MessageRoutes(reg, router.MessageOptions{Commands: cmdOpts})...)
			return routes
		},
		OnStart: func(_ context.Context, rt coretelegram.Runtime) error {
			a.io.Attach(rt.Bot)
			return nil
		},
		OnStop: func(context.Context, coretelegram.Runtime) error {
			a.engine.Close()
			return a.store.Close()
		},
	}, nil
}

// Services implements corecmd.ServiceApp.
func (a *App) Services() []corecmd.Service {
	if a.status == nil {
		return nil
	}
	return []corecmd.Service{{Name: "status", Run: a.status.Run}}
}
