// Command flaresync-connect links a social platform account from a terminal.
// It runs the connector flow locally, listens on a loopback address for the
// provider redirect and delegates the token exchange to a flaresync backend.
package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/goliatone/flaresync"
	"github.com/goliatone/flaresync/config"
	"github.com/goliatone/flaresync/connector"
	"github.com/goliatone/flaresync/exchange"
	"github.com/goliatone/flaresync/kv"
	"github.com/goliatone/flaresync/logging"
	"github.com/goliatone/flaresync/social"
	"github.com/goliatone/go-errors"
)

const tokenEnvVar = "FLARESYNC_TOKEN"

type App struct {
	config       *config.Config
	logger       *logging.Logger
	kv           *badger.DB
	sessions     *flaresync.TokenService
	orchestrator *connector.Orchestrator
	out          io.Writer
}

func (a *App) GetLogger(name string) *logging.Logger {
	return a.logger.With("logger", name)
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	platformName := flag.String("platform", "", "platform to act on")
	token := flag.String("token", os.Getenv(tokenEnvVar), "session bearer token")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] connect|disconnect|sync|status\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	action := flag.Arg(0)
	if action == "" {
		action = "status"
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := &App{
		config: cfg,
		logger: logging.New(cfg.Logging),
		out:    os.Stdout,
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := WithConnectors(ctx, app); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := run(ctx, app, action, *platformName, *token); err != nil {
		fmt.Fprintln(os.Stderr, exchange.ErrorMessage(err))
		os.Exit(1)
	}
}

func WithConnectors(_ context.Context, app *App) error {
	cfg := app.config

	secret := []byte(cfg.Client.StateSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return err
		}
	}
	states, err := social.NewStateManagerFromSecret(secret, cfg.Pending.TTL)
	if err != nil {
		return err
	}

	var pending social.PendingStore
	switch cfg.Pending.Store {
	case config.StoreBadger:
		db, err := kv.Open(kv.Options{Path: cfg.KV.Path, SyncWrites: cfg.KV.SyncWrites})
		if err != nil {
			return err
		}
		app.kv = db
		pending = kv.NewPendingStore(db, cfg.Pending.TTL)
	default:
		pending = social.NewMemoryPendingStore(cfg.Pending.TTL)
	}

	app.sessions = flaresync.NewTokenService(
		[]byte(cfg.Session.SigningKey),
		cfg.Session.TTL,
		cfg.Session.Issuer,
		cfg.Session.Audience,
		app.GetLogger("session"),
	)

	backend := connector.NewHTTPBackend(cfg.Client.BackendURL, nil)
	notifier := connector.LogNotifier{Logger: app.GetLogger("notifier")}

	app.orchestrator = connector.NewOrchestrator(app.GetLogger("orchestrator"))
	for _, adapter := range cfg.Platforms.Adapters() {
		app.orchestrator.Register(connector.New(adapter, pending, states, backend,
			connector.WithNotifier(notifier),
			connector.WithLogger(app.GetLogger("connector")),
			connector.WithPendingTTL(cfg.Pending.TTL),
		))
	}
	return nil
}

func run(ctx context.Context, app *App, action, platformName, token string) error {
	session, err := app.sessions.Verify(ctx, token)
	if err != nil {
		return err
	}

	if err := app.orchestrator.RefreshAll(ctx, session); err != nil {
		return err
	}

	if action == "status" {
		printStatus(app.out, app.orchestrator)
		return nil
	}

	platform, err := flaresync.ParsePlatform(platformName)
	if err != nil {
		return err
	}
	c, err := app.orchestrator.Connector(platform)
	if err != nil {
		return err
	}

	switch action {
	case "connect":
		return connect(ctx, app, session, platform)
	case "disconnect":
		if _, err := c.Disconnect(ctx, session); err != nil {
			return err
		}
		fmt.Fprintf(app.out, "%s disconnected\n", platform)
		return nil
	case "sync":
		profile, err := c.SyncData(ctx, session)
		if err != nil {
			return err
		}
		printProfile(app.out, profile)
		return nil
	default:
		return errors.New("unknown action", errors.CategoryBadInput).
			WithMetadata(map[string]any{"action": action})
	}
}

func connect(ctx context.Context, app *App, session flaresync.Session, platform flaresync.Platform) error {
	ctx, cancel := context.WithTimeout(ctx, app.config.Client.Timeout)
	defer cancel()

	listener, err := listenCallback(app.config.Client.CallbackAddr, app.GetLogger("callback"))
	if err != nil {
		return err
	}
	defer listener.Close()

	redirect, err := app.orchestrator.InitiateConnect(ctx, session, platform)
	if err != nil {
		return err
	}

	fmt.Fprintf(app.out, "Open this URL to authorize %s:\n\n  %s\n\n", platform, redirect.URL)

	rawURL, err := listener.Wait(ctx)
	if err != nil {
		c, _ := app.orchestrator.Connector(platform)
		_ = c.CancelCallback(context.Background(), session, "callback not received")
		return err
	}

	profile, err := app.orchestrator.HandleCallback(ctx, session, rawURL)
	if err != nil {
		return err
	}
	printProfile(app.out, profile)
	return nil
}

func printStatus(w io.Writer, o *connector.Orchestrator) {
	statuses := o.Statuses()
	platforms := make([]string, 0, len(statuses))
	for p := range statuses {
		platforms = append(platforms, p.String())
	}
	sort.Strings(platforms)

	for _, p := range platforms {
		fmt.Fprintf(w, "%-10s %s\n", p, statuses[flaresync.Platform(p)])
	}
}

func printProfile(w io.Writer, p *flaresync.SocialProfile) {
	if p == nil {
		return
	}
	fmt.Fprintf(w, "%s connected as @%s (%d followers, %d posts, %.2f%% engagement)\n",
		p.Platform, p.Username, p.Followers, p.Posts, p.Engagement)
}

func (a *App) Close() {
	if a.kv != nil {
		_ = a.kv.Close()
	}
}
