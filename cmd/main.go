// File: main.go

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/quartz"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"throughput-tester/pkg/api"
	"throughput-tester/pkg/config"
	"throughput-tester/pkg/fetch"
	"throughput-tester/pkg/metrics"
	"throughput-tester/pkg/notify"
	"throughput-tester/pkg/records"
	"throughput-tester/pkg/session"
)

var (
	debugFlag  bool
	configFile string
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "throughput-tester",
	Short: "A tool for measuring sustained download throughput",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Set up logging based on the debug flag
		var logLevel slog.Level
		if debugFlag {
			logLevel = slog.LevelDebug
		} else {
			logLevel = slog.LevelInfo
		}

		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
		slog.SetDefault(logger)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP control API and the live stats websocket",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			logger.Error("Invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		m := metrics.New()
		hub := notify.NewHub(logger)
		ctrl, err := newController(ctx, cfg, hub, m)
		if err != nil {
			logger.Error("Error creating session controller", "error", err)
			os.Exit(1)
		}

		server := &http.Server{
			Addr: cfg.Listen,
			Handler: api.NewRouter(api.Deps{
				Logger:     logger,
				Controller: ctrl,
				Stats:      hub.HandleWS,
				Metrics:    m,
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
		g.Go(func() error {
			logger.Info("Server listening", "addr", cfg.Listen, "maxWorkers", cfg.MaxWorkers)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			ctrl.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})

		if err := g.Wait(); err != nil {
			logger.Error("Server stopped with error", "error", err)
			os.Exit(1)
		}
		logger.Info("Server stopped")
	},
}

var runCmd = &cobra.Command{
	Use:     "run [url]",
	Short:   "Measure throughput against a URL from the command line",
	Long:    `Download [url] repeatedly with parallel workers, log the stats every interval and print the final record as JSON when the duration elapses or the process is interrupted.`,
	Example: "run http://speed.example.com/1GB.bin --duration 30s",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			logger.Error("Invalid configuration", "error", err)
			os.Exit(1)
		}
		duration, _ := cmd.Flags().GetDuration("duration")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ctrl, err := newController(ctx, cfg, notify.LogNotifier{Logger: logger}, nil)
		if err != nil {
			logger.Error("Error creating session controller", "error", err)
			os.Exit(1)
		}

		if _, err := ctrl.Start(ctx, args[0]); err != nil {
			logger.Error("Error starting measurement", "error", err)
			os.Exit(1)
		}

		if duration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, duration)
			defer cancel()
		}
		<-ctx.Done()

		rec := ctrl.Stop()
		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			logger.Error("Error encoding record", "error", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: config.yaml in ., $HOME/.throughput-tester, /etc/throughput-tester)")
	rootCmd.PersistentFlags().Int("workers", 0, "Maximum number of fetch workers (overrides workers.max)")
	serveCmd.Flags().String("listen", "", "Listen address (overrides listen)")
	runCmd.Flags().Duration("duration", 0, "Stop after this long (0 runs until interrupted)")

	_ = viper.BindPFlag("workers.max", rootCmd.PersistentFlags().Lookup("workers"))
	_ = viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}

func initConfig() {
	config.SetDefaults(viper.GetViper())
	viper.SetEnvPrefix("throughput")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.throughput-tester")
		viper.AddConfigPath("/etc/throughput-tester/")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			fmt.Printf("Error reading config file: %v\n", err)
			os.Exit(1)
		}
	}
}

// newController wires the fetch workers, record store and metrics for cfg.
func newController(ctx context.Context, cfg config.Config, notifier notify.Notifier, m *metrics.Metrics) (*session.Controller, error) {
	transport, err := config.ResolveTransport(cfg.Fetch.Transport, nil)
	if err != nil {
		return nil, fmt.Errorf("error resolving transport: %w", err)
	}
	opts := cfg.Fetch.FetchOptions(transport)
	opts.OnDial = func(addr string, err error) {
		if err != nil {
			logger.Debug("Dial failed", "addr", addr, "error", err)
			return
		}
		logger.Debug("Dialed", "addr", addr)
	}
	client, err := fetch.NewClient(opts)
	if err != nil {
		return nil, err
	}
	header, err := fetch.ParseHeaders(cfg.Fetch.Headers)
	if err != nil {
		return nil, err
	}

	clock := quartz.NewReal()
	runners := session.FetchRunners(fetch.WorkerConfig{
		Client:     client,
		Method:     cfg.Fetch.Method,
		Header:     header,
		RetryDelay: cfg.Fetch.RetryDelay,
		BufferSize: cfg.Fetch.BufferSize,
		Clock:      clock,
		Logger:     logger,
		OnError:    func(error) { m.FetchFailed() },
	})

	logger.DebugContext(ctx, "Session controller configured",
		"maxWorkers", cfg.MaxWorkers,
		"interval", cfg.StatsInterval,
		"customTransport", transport != "")

	return session.NewController(session.Options{
		Logger:     logger,
		Clock:      clock,
		Notifier:   notifier,
		Store:      records.NewMemoryStore(cfg.RecordRetention),
		Metrics:    m,
		MaxWorkers: cfg.MaxWorkers,
		Interval:   cfg.StatsInterval,
		NewRunner:  runners,
	}), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
