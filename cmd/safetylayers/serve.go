package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	httpAdapter "github.com/advancedresearch/agent-safety-layers/pkg/adapters/http"
	"github.com/advancedresearch/agent-safety-layers/pkg/adapters/memory"
	redisAdapter "github.com/advancedresearch/agent-safety-layers/pkg/adapters/redis"
	"github.com/advancedresearch/agent-safety-layers/pkg/observability"
	"github.com/advancedresearch/agent-safety-layers/pkg/persistence/middleware"
	"github.com/advancedresearch/agent-safety-layers/pkg/ports"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
	"github.com/advancedresearch/agent-safety-layers/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve <scenario.yaml>",
	Short: "Start the HTTP session server for a scenario",
	Long: `Serves stateful sessions over a JSON API. Sessions live in memory unless --redis-addr
is given, in which case they are stored in Redis and locked across replicas.
Prometheus metrics are exposed on /metrics.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(cmd)
		if err != nil {
			return err
		}
		sc, err := scenario.Load(args[0])
		if err != nil {
			return err
		}
		port, _ := cmd.Flags().GetString("port")

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return err
		}

		streams := httpAdapter.NewStreamManager(logger)
		layers, err := layersFlag(cmd)
		if err != nil {
			return err
		}
		agent, err := buildAgent(sc, layers,
			safetylayers.WithLogger(logger),
			safetylayers.WithLifecycleHooks(metrics.Hooks()),
			safetylayers.WithLifecycleHooks(streams.Hooks()),
			safetylayers.WithLifecycleHooks(observability.LogHooks(logger)),
		)
		if err != nil {
			return err
		}

		store, locker, closeStore, err := newSessionStore(cmd, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		maxLayers, _ := cmd.Flags().GetInt("max-layers")
		managerOpts := []session.Option{session.WithLogger(logger), session.WithMaxLayers(maxLayers)}
		if locker != nil {
			managerOpts = append(managerOpts, session.WithLocker(locker))
		}

		sessions := session.NewManager(agent, sc.Act, store, managerOpts...)
		srv := httpAdapter.NewServer(sc, sessions,
			httpAdapter.WithLogger(logger),
			httpAdapter.WithStreams(streams),
			httpAdapter.WithMetrics(reg),
		)

		return serveHTTP(cmd.Context(), ":"+port, httpAdapter.NewHandler(srv), logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Duration("session-ttl", 0, "Expire idle Redis sessions after this long (0 keeps them)")
	serveCmd.Flags().String("encryption-key", "", "Base64 AES-256 key sealing stored sessions (default: plain)")
	serveCmd.Flags().Int("max-layers", safetylayers.DefaultMaxLayers, "Largest layer count a session may ask for (0: unbounded)")
}

// newSessionStore picks the session store from the flags: in memory or in Redis,
// optionally sealed with --encryption-key. The locker is nil without Redis.
func newSessionStore(cmd *cobra.Command, logger *slog.Logger) (ports.SnapshotStore[string], ports.DistributedLocker, func(), error) {
	redisAddr, _ := cmd.Flags().GetString("redis-addr")
	redisPrefix, _ := cmd.Flags().GetString("redis-prefix")
	ttl, _ := cmd.Flags().GetDuration("session-ttl")
	rawKey, _ := cmd.Flags().GetString("encryption-key")

	var key []byte
	if rawKey != "" {
		var err error
		key, err = base64.StdEncoding.DecodeString(rawKey)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("decode encryption key: %w", err)
		}
	}

	if redisAddr == "" {
		if key == nil {
			return memory.NewStore[string](), nil, func() {}, nil
		}
		store, err := middleware.NewEncryptedStore[string](memory.NewStore[[]byte](), middleware.EncryptionConfig{ActiveKey: key})
		return store, nil, func() {}, err
	}

	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	closeClient := func() { _ = client.Close() }
	if err := client.Ping(cmd.Context()).Err(); err != nil {
		closeClient()
		return nil, nil, nil, fmt.Errorf("connect to redis at %s: %w", redisAddr, err)
	}
	logger.Info("using redis session store", "address", redisAddr, "prefix", redisPrefix, "encrypted", key != nil)

	storeOpts := []redisAdapter.Option{
		redisAdapter.WithPrefix(redisPrefix + "session:"),
		redisAdapter.WithTTL(ttl),
	}
	locker := redisAdapter.NewLocker(client, redisPrefix+"lock:")

	if key == nil {
		return redisAdapter.NewFromClient[string](client, storeOpts...), locker, closeClient, nil
	}
	store, err := middleware.NewEncryptedStore[string](
		redisAdapter.NewFromClient[[]byte](client, storeOpts...),
		middleware.EncryptionConfig{ActiveKey: key},
	)
	if err != nil {
		closeClient()
		return nil, nil, nil, err
	}
	return store, locker, closeClient, nil
}

func serveHTTP(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting safetylayers server", "address", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt or terminate signals.
	shutdown, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-shutdown.Done():
		logger.Info("shutting down server")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown did not complete", "err", err)
			return srv.Close()
		}
		logger.Info("server stopped gracefully")
		return nil
	}
}
