package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"lanshare/internal/config"
	"lanshare/internal/httpserver"
	"lanshare/internal/qr"
)

const shutdownTimeout = 5 * time.Second

func addServeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("host", "0.0.0.0", "bind address")
	f.IntP("port", "p", 8080, "listen port")
	f.StringP("folder", "f", "", "folder to share at startup")
	f.Bool("debug", false, "debug logging")
}

// bindServeFlags makes explicitly set flags win over file and environment.
func bindServeFlags(v *viper.Viper, cmd *cobra.Command) error {
	for key, name := range map[string]string{"host": "host", "port": "port", "folder": "folder"} {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		v.Set("log.level", "debug")
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	v := config.NewViper(cfgFile)
	if err := bindServeFlags(v, cmd); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("loaded config", "file", f)
	}
	if cfg.SessionSecret == "" {
		logger.Debug("no session_secret set, identities reset on restart")
	}

	srv, err := httpserver.New(httpserver.Options{Config: *cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}
	if cfg.Folder != "" {
		if abs, err := srv.Root().Set(cfg.Folder); err != nil {
			logger.Warn("initial folder not shared", "folder", cfg.Folder, "error", err)
		} else {
			logger.Info("sharing folder", "folder", abs)
		}
	}

	// Failing to bind is the one fatal condition.
	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}

	showQR := cfg.TerminalQR && term.IsTerminal(int(os.Stdout.Fd()))
	printBanner(cmd.OutOrStdout(), cfg, srv.URL(), srv.Root().Path(), showQR)

	hs := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()
	logger.Info("lanshare listening", "addr", ln.Addr().String(), "url", srv.URL())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		stop() // a second signal kills the process
		logger.Info("shutting down")
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hs.Shutdown(shCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	logger.Info("lanshare stopped")
	return nil
}

func printBanner(w io.Writer, cfg *config.Config, url, folder string, showQR bool) {
	fmt.Fprintf(w, "lanshare %s\n", Version)
	fmt.Fprintf(w, "  Local:    http://localhost:%d\n", cfg.Port)
	fmt.Fprintf(w, "  Network:  %s\n", url)
	if folder != "" {
		fmt.Fprintf(w, "  Sharing:  %s\n", folder)
	} else {
		fmt.Fprintf(w, "  Sharing:  nothing yet, pick a folder on the home page\n")
	}
	if cfg.WebDAV {
		fmt.Fprintf(w, "  WebDAV:   %s/dav/ (read-only)\n", url)
	}
	if showQR {
		fmt.Fprintln(w, "\nScan to open on a phone:")
		qr.Terminal(w, url)
	}
	fmt.Fprintln(w)
}
