package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/lotwatch/internal/auction"
	"github.com/rickgao/lotwatch/internal/auth"
	"github.com/rickgao/lotwatch/internal/browser"
	"github.com/rickgao/lotwatch/internal/config"
	"github.com/rickgao/lotwatch/internal/diag"
	"github.com/rickgao/lotwatch/internal/events"
	"github.com/rickgao/lotwatch/internal/feed"
	"github.com/rickgao/lotwatch/internal/monitor"
	"github.com/rickgao/lotwatch/internal/page"
	"github.com/rickgao/lotwatch/internal/session"
	"github.com/rickgao/lotwatch/internal/stream"
	"github.com/rickgao/lotwatch/internal/version"
	"github.com/rickgao/lotwatch/internal/writer"
)

var maxSessions int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Sign in, join auctions back to back, and record closings",
	Args:  cobra.NoArgs,
	RunE:  runMonitor,
}

func init() {
	runCmd.Flags().IntVar(&maxSessions, "max-sessions", 0, "stop after this many auction sessions (0 = run until interrupted)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.Logging, os.Stdout)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	slog.SetDefault(logger)

	logger.Info("starting lotwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
		"instance_id", cfg.Instance.ID,
		"store", cfg.Store.Backend,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	defer be.close()

	exceptions := diag.NewExceptionLog(cfg.Diagnostics.ExceptionsLog)
	defer exceptions.Close()

	dumper, err := newDumper(ctx, cfg.Diagnostics, logger)
	if err != nil {
		return err
	}

	// Accepted closings go to websocket followers and, if configured, NATS.
	hub := stream.NewHub(logger)
	go hub.Run(ctx)

	publishers := events.Fanout{hub}
	if cfg.Events.NATSURL != "" {
		nc, err := events.NewNATSPublisher(cfg.Events.NATSURL, "lotwatch-"+cfg.Instance.ID, logger)
		if err != nil {
			return err
		}
		publishers = append(publishers, nc)
	}
	defer publishers.Close()

	recorder := writer.NewRecorder(writer.Config{
		StoreTimeout: cfg.Store.Timeout,
		Topic:        cfg.Events.Subject,
	}, be.store, publishers, exceptions, logger)

	br, err := browser.New(ctx, browser.Config{
		RemoteURL:     cfg.Browser.RemoteURL,
		ExecPath:      cfg.Browser.ExecPath,
		Headless:      cfg.Browser.Headless,
		UserAgent:     cfg.Browser.UserAgent,
		UserDataDir:   cfg.Browser.UserDataDir,
		WindowWidth:   cfg.Browser.WindowWidth,
		WindowHeight:  cfg.Browser.WindowHeight,
		DisableImages: cfg.Browser.DisableImages,
	}, logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer br.Close()

	sel := feed.Selectors{
		Status:    cfg.Selectors.Status,
		Title:     cfg.Selectors.Title,
		LotNumber: cfg.Selectors.LotNumber,
		Ended:     cfg.Selectors.Ended,
	}
	fcfg := feed.Config{
		ReadTimeout:     cfg.Monitor.ReadTimeout,
		EndProbeTimeout: cfg.Monitor.EndProbeTimeout,
		EndProbeEvery:   page.DefaultPollInterval,
	}
	dumpFrame := cfg.Selectors.Status.Frame

	sessions := session.NewController(session.Config{
		ListingURL:     cfg.Site.ListingURL,
		JoinTimeout:    cfg.Session.JoinTimeout,
		SettleDelay:    cfg.Session.SettleDelay,
		RetryDelay:     cfg.Session.RetryDelay,
		DialogClose:    cfg.Session.DialogClose,
		JoinCandidates: cfg.Session.JoinCandidates,
		DumpFrame:      dumpFrame,
	}, br, dumper, logger)

	creds, err := auth.NewCredentials(cfg.Auth.Username, cfg.Auth.Password)
	if err != nil {
		return err
	}
	login := auth.NewFormLogin(auth.FormConfig{
		LoginURL:      cfg.Site.LoginURL,
		LandingURL:    cfg.Site.DashboardURL,
		UsernameField: cfg.Auth.UsernameField,
		PasswordField: cfg.Auth.PasswordField,
		Submit:        cfg.Auth.Submit,
		LoggedIn:      cfg.Auth.LoggedIn,
		Timeout:       cfg.Auth.Timeout,
	}, creds, br)

	mon := monitor.New(monitor.Config{
		Machine: auction.Config{
			TickInterval: cfg.Monitor.TickInterval,
			StallTicks:   cfg.Monitor.StallTicks,
		},
		DumpFrame:   dumpFrame,
		MaxSessions: maxSessions,
	}, monitor.Deps{
		Auth: auth.NewAuthenticator(auth.Policy{
			MaxAttempts: cfg.Auth.MaxAttempts,
			BaseDelay:   cfg.Auth.BaseDelay,
		}, login, logger),
		Sessions: sessions,
		Prices:   feed.NewPriceFeed(fcfg, sel, br, logger),
		Lots:     feed.NewLotIdentifier(fcfg, sel, br),
		Recorder: recorder,
		Page:     br,
		Dumper:   dumper,
	}, logger)

	var healthServer *http.Server
	if cfg.Server.Enabled {
		healthServer = &http.Server{
			Addr: fmt.Sprintf(":%d", cfg.Server.Port),
			Handler: createHealthHandler(statusSources{
				backend:  be.name,
				ping:     be.ping,
				monitor:  mon.Stats,
				recorder: recorder.Stats,
				joins:    sessions.Stats,
				clients:  hub.ClientCount,
				ws:       hub.HandleWS,
			}, logger),
		}
		go func() {
			logger.Info("starting health server", "port", cfg.Server.Port)
			if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	if err := mon.Start(ctx); err != nil {
		return err
	}

	// Wait for shutdown or for the monitor to give up
	select {
	case <-ctx.Done():
	case <-mon.Done():
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := mon.Stop(shutdownCtx); err != nil {
		logger.Warn("monitor did not stop in time", "error", err)
	}
	if healthServer != nil {
		healthServer.Shutdown(shutdownCtx)
	}

	st := mon.Stats()
	logger.Info("lotwatch stopped",
		"sessions", st.Sessions,
		"closings", st.Closings,
	)

	if err := mon.Err(); err != nil {
		logger.Error("monitor failed", "error", err)
		return err
	}
	return nil
}
