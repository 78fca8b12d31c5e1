// Package status serves the read-only status page and a health probe.
package status

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/m3rciful/quicklink/core/logger"
	"github.com/m3rciful/quicklink/internal/bot"
	"github.com/m3rciful/quicklink/internal/config"
	"github.com/m3rciful/quicklink/internal/storage"
)

const page = `<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>QuickLink Bot</title></head>
<body>
<h1>QuickLink Utilities Bot</h1>
<p>Status: running</p>
<p>Uptime: {{.Uptime}}</p>
<h2>Stats</h2>
<ul>
<li>Shortens: {{.Shortens}}</li>
<li>QR Generated: {{.QRGenerated}}</li>
<li>QR Scanned: {{.QRScanned}}</li>
<li>Last broadcast: {{if .LastBroadcast}}{{.LastBroadcast}}{{else}}never{{end}}</li>
</ul>
<h2>Last shortened URLs</h2>
{{if .Recent}}<ul>{{range .Recent}}<li><a href="{{.}}">{{.}}</a></li>{{end}}</ul>{{else}}<p>No recent URLs</p>{{end}}
<p>
{{if .ContactURL}}<a href="{{.ContactURL}}">{{.ContactName}}</a>{{end}}
{{if .OwnerURL}}<a href="{{.OwnerURL}}">{{.OwnerName}}</a>{{end}}
</p>
</body>
</html>`

var pageTemplate = template.Must(template.New("status").Parse(page))

type view struct {
	Uptime        string
	Shortens      int64
	QRGenerated   int64
	QRScanned     int64
	LastBroadcast string
	Recent        []string
	ContactName   string
	ContactURL    string
	OwnerName     string
	OwnerURL      string
}

// Server is the status HTTP server.
type Server struct {
	cfg     config.StatusConfig
	store   *storage.BestEffort
	started time.Time
	now     func() time.Time
	engine  *gin.Engine
}

// New builds the router. startedAt is shown as uptime.
func New(cfg config.StatusConfig, store *storage.BestEffort, startedAt time.Time) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{cfg: cfg, store: store, started: startedAt, now: time.Now}

	r := gin.New()
	r.Use(gin.Recovery(), accessLog())
	r.SetHTMLTemplate(pageTemplate)
	r.GET("/", s.index)
	r.HEAD("/", s.index)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	s.engine = r
	return s
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) index(c *gin.Context) {
	ctx := c.Request.Context()
	stats := s.store.Stats(ctx)
	v := view{
		Uptime:      bot.Uptime(s.now().Sub(s.started)),
		Shortens:    stats[storage.CounterShorten],
		QRGenerated: stats[storage.CounterQRGen],
		QRScanned:   stats[storage.CounterQRScan],
		ContactName: s.cfg.ContactName,
		ContactURL:  s.cfg.ContactURL,
		OwnerName:   s.cfg.OwnerName,
		OwnerURL:    s.cfg.OwnerURL,
	}
	if at, ok := s.store.LastBroadcast(ctx); ok {
		v.LastBroadcast = at.UTC().Format(time.RFC3339)
	}
	for _, e := range s.store.RecentURLs(ctx, storage.RecentURLShown) {
		v.Recent = append(v.Recent, e.URL)
	}
	c.HTML(http.StatusOK, "status", v)
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug(c.Request.Context(), "web", "http.request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("code", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "web", "listen", slog.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(ctx, "web", "shutdown", slog.String("status", "fail"), slog.String("err", err.Error()))
		return err
	}
	logger.Info(ctx, "web", "shutdown", slog.String("status", "ok"))
	return nil
}
