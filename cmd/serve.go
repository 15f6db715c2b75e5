package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adalundhe/relay/core/analytics"
	"github.com/adalundhe/relay/core/config"
	"github.com/adalundhe/relay/core/knowledge"
	"github.com/adalundhe/relay/core/llm"
	"github.com/adalundhe/relay/core/ratelimit"
	"github.com/adalundhe/relay/core/server"
)

var (
	configPath string
	addrFlag   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "relay.yaml", "path to config file")
	serveCmd.Flags().StringVarP(&addrFlag, "addr", "a", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("loading config", "error", err)
		return err
	}
	if addrFlag != "" {
		cfg.Server.Addr = addrFlag
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		return err
	}

	kb, err := knowledge.NewBase(cfg.Knowledge.Path, logger)
	if err != nil {
		logger.Error("loading knowledge base", "error", err)
		return err
	}
	defer kb.Close()

	if cfg.Knowledge.Watch {
		if err := kb.Watch(); err != nil {
			logger.Warn("knowledge base watch disabled", "error", err)
		}
	}

	var gate ratelimit.Gate = ratelimit.Noop{}
	if cfg.RateLimit.Enabled {
		store, err := ratelimit.NewRistrettoStore()
		if err != nil {
			logger.Error("creating counter store", "error", err)
			return err
		}
		defer store.Close()

		gate = ratelimit.NewWindowLimiter(ratelimit.Config{
			MaxPerHour:     cfg.RateLimit.MaxPerHour,
			MaxPerDay:      cfg.RateLimit.MaxPerDay,
			Whitelist:      cfg.RateLimit.WhitelistIPs,
			LoopbackBypass: cfg.RateLimit.LoopbackBypass,
		}, store, ratelimit.WithLogger(logger))
	}

	client := llm.NewClient(cfg.Provider.BaseURL,
		llm.WithHTTPClient(&http.Client{Timeout: cfg.Provider.Timeout.Std()}),
		llm.WithBackoff(llm.BackoffConfig{
			Base: cfg.Provider.BaseBackoff.Std(),
			Max:  cfg.Provider.MaxBackoff.Std(),
		}),
		llm.WithClientLogger(logger),
	)

	dispatcher := llm.NewDispatcher(llm.DispatcherConfig{
		Models:      cfg.Provider.Models,
		Credentials: cfg.Provider.Credentials,
		MaxRetries:  cfg.Provider.MaxRetries,
		RetryDelay:  cfg.Provider.RetryDelay.Std(),
		Params: llm.Params{
			Temperature:     cfg.Provider.Temperature,
			TopP:            cfg.Provider.TopP,
			TopK:            cfg.Provider.TopK,
			MaxOutputTokens: cfg.Provider.MaxOutputTokens,
		},
	}, client, llm.WithDispatchLogger(logger))

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithAnswerCache(llm.NewAnswerCache(cfg.Cache.Size, cfg.Cache.TTL.Std())),
	}

	if cfg.Analytics.Enabled {
		sink, err := analytics.NewSQLiteSink(cfg.Analytics.Path)
		if err != nil {
			logger.Error("opening analytics store", "error", err)
			return err
		}
		recorder := analytics.NewRecorder(sink, cfg.Analytics.Buffer, logger)
		defer func() {
			if err := recorder.Close(); err != nil {
				logger.Warn("closing analytics recorder", "error", err)
			}
		}()
		opts = append(opts, server.WithRecorder(recorder))
	}

	srv := server.New(gate, kb, dispatcher, opts...)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("webhook server listening", "addr", cfg.Server.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			return err
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}

	return nil
}
