package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/chat-starter/internal/config"
	"github.com/zhouzirui/chat-starter/internal/handler"
	"github.com/zhouzirui/chat-starter/internal/metrics"
	chatService "github.com/zhouzirui/chat-starter/internal/service/chat"
	"github.com/zhouzirui/chat-starter/internal/service/transport"
	"github.com/zhouzirui/chat-starter/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:          "chat",
	Short:        "Minimal WebSocket chat client",
	SilenceUsage: true,
	RunE:         runChat,
}

var (
	flagHeadless bool
	flagLogLevel string
	flagLogFile  string
	flagUUID     bool
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&flagHeadless, "headless", false, "serve the session over local HTTP instead of the terminal UI")
	flags.StringVar(&flagLogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flags.StringVar(&flagLogFile, "log-file", "", "write logs to this file while the terminal UI is running")
	flags.BoolVar(&flagUUID, "uuid-identity", false, "use a UUID client identity instead of client-N")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}

	closeLog, err := setupLogging(cfg.Log, flagHeadless, flagLogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded, using environment only")
	}

	tr := transport.NewWebSocket(transport.Options{
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		WriteTimeout:     cfg.Transport.WriteTimeout,
	})

	var opts []chatService.Option
	if flagUUID {
		opts = append(opts, chatService.WithIdentity(chatService.UUIDIdentity))
	}
	m := metrics.New()
	opts = append(opts, chatService.WithMetrics(m))

	session := chatService.NewSession(tr, cfg.Endpoint, opts...)
	// Stop also releases what a failed Start left running.
	defer func() {
		if err := session.Stop(); err != nil {
			log.Warn().Err(err).Msg("[chat] stop failed")
		}
	}()
	if err := session.Start(ctx); err != nil {
		return err
	}

	if flagHeadless {
		return startServer(ctx, cfg.Server, handler.NewRouter(session, m))
	}
	return ui.Run(ctx, session)
}

// setupLogging keeps the terminal clean while the UI owns it.
func setupLogging(cfg config.LogConfig, headless bool, file string) (func(), error) {
	zerolog.SetGlobalLevel(cfg.ZerologLevel())

	if headless {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		return func() {}, nil
	}

	if file == "" {
		log.Logger = zerolog.New(io.Discard)
		return func() {}, nil
	}

	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, err
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return func() { _ = f.Close() }, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Info().Str("addr", serverCfg.Addr).Msg("[http] headless session listening")
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
