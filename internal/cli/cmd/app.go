// Package cmd provides the commands of the console binary.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jmake-zxb/jk-ui/internal/config"
	"github.com/jmake-zxb/jk-ui/internal/logging"
	"github.com/jmake-zxb/jk-ui/internal/metrics"
	"github.com/jmake-zxb/jk-ui/internal/notify"
	"github.com/jmake-zxb/jk-ui/pkg/client"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Exit codes.
const (
	ExitError    = 1
	ExitRejected = 2
)

// runtime is the state shared by the commands of one invocation.
// Config and client are created on first use so that commands which never
// talk to the backend work without CONSOLE_BASE_URL.
type runtime struct {
	cfgOnce sync.Once
	cfg     *config.Config
	cfgErr  error

	client  *client.Client
	notices *notify.Bus

	sub        chan notify.Notice
	noticeDone chan struct{}
	metricsSrv *http.Server
}

// NewApp builds the console CLI.
func NewApp() *cli.App {
	rt := &runtime{notices: notify.NewBus()}
	return &cli.App{
		Name:    "console",
		Usage:   "Admin console client: login, menus, resources, uploads and exports",
		Version: Version,
		Flags:   GlobalFlags(),
		Before:  rt.before,
		After:   rt.after,
		Commands: []*cli.Command{
			rt.loginCommand(),
			rt.logoutCommand(),
			rt.codesCommand(),
			rt.whoamiCommand(),
			rt.routesCommand(),
			rt.treeCommand(),
			rt.resourceCommand(),
			rt.uploadCommand(),
			rt.exportCommand(),
			rt.dictCommand(),
			rt.validateCommand(),
		},
	}
}

func (rt *runtime) before(c *cli.Context) error {
	if _, err := config.LoadEnvFiles(c.StringSlice("env-file")); err != nil {
		return cli.Exit(fmt.Sprintf("load env files: %v", err), ExitError)
	}

	level := envOr("LOG_LEVEL", "info")
	if c.IsSet("log-level") {
		level = c.String("log-level")
	}
	if c.Bool("verbose") {
		level = "debug"
	}
	if err := logging.Init(logging.Config{Level: level, Format: envOr("LOG_FORMAT", "console")}); err != nil {
		return cli.Exit(fmt.Sprintf("init logging: %v", err), ExitError)
	}

	rt.startNotices(c.App.ErrWriter)
	return nil
}

func (rt *runtime) after(c *cli.Context) error {
	if rt.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		rt.metricsSrv.Shutdown(ctx)
	}
	rt.stopNotices()
	logging.Sync()
	return nil
}

// startNotices prints notices to w until stopNotices.
func (rt *runtime) startNotices(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	rt.sub = rt.notices.Subscribe()
	rt.noticeDone = make(chan struct{})
	go func() {
		defer close(rt.noticeDone)
		for n := range rt.sub {
			fmt.Fprintf(w, "[%s] %s\n", n.Level, n.Message)
		}
	}()
}

func (rt *runtime) stopNotices() {
	if rt.sub == nil {
		return
	}
	rt.notices.Unsubscribe(rt.sub)
	<-rt.noticeDone
	rt.sub = nil
}

// config loads configuration once per invocation.
func (rt *runtime) config() (*config.Config, error) {
	rt.cfgOnce.Do(func() {
		rt.cfg, rt.cfgErr = config.Parse()
		if rt.cfgErr == nil {
			rt.startMetrics(rt.cfg.MetricsAddr)
		}
	})
	return rt.cfg, rt.cfgErr
}

func (rt *runtime) startMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	rt.metricsSrv = &http.Server{Addr: addr, Handler: mux}
	go func() {
		logging.Info("metrics server listening", logging.String("addr", addr))
		if err := rt.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server error", logging.Err(err))
		}
	}()
}

// backend returns the API client, without logging in.
func (rt *runtime) backend() (*client.Client, *config.Config, error) {
	cfg, err := rt.config()
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), ExitError)
	}
	if rt.client == nil {
		rt.client = client.New(client.Config{
			BaseURL:      cfg.BaseURL,
			Timeout:      cfg.Timeout,
			Micro:        cfg.Micro,
			OAuth2Client: cfg.OAuth2Client,
			Scope:        cfg.OAuth2Scope,
			PwdEncKey:    cfg.PwdEncKey,
			Token:        cfg.Token,
			UploadPath:   cfg.UploadPath,
			Notices:      rt.notices,
		})
	}
	return rt.client, cfg, nil
}

// session returns a client with a usable token: CONSOLE_TOKEN when set,
// otherwise a password login with CONSOLE_USERNAME and CONSOLE_PASSWORD.
func (rt *runtime) session(ctx context.Context) (*client.Client, *config.Config, error) {
	c, cfg, err := rt.backend()
	if err != nil {
		return nil, nil, err
	}
	if c.Session() != nil {
		return c, cfg, nil
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, nil, cli.Exit("not logged in: set CONSOLE_TOKEN, or CONSOLE_USERNAME and CONSOLE_PASSWORD", ExitError)
	}
	if _, err := c.Login(ctx, client.LoginParams{Username: cfg.Username, Password: cfg.Password}); err != nil {
		return nil, nil, err
	}
	return c, cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
