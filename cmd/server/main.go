package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	authproviders "github.com/cbodonnell/wordrush/pkg/auth/providers"
	"github.com/cbodonnell/wordrush/pkg/config"
	"github.com/cbodonnell/wordrush/pkg/game"
	"github.com/cbodonnell/wordrush/pkg/log"
	"github.com/cbodonnell/wordrush/pkg/metrics"
	"github.com/cbodonnell/wordrush/pkg/network"
	"github.com/cbodonnell/wordrush/pkg/oracle"
	"github.com/cbodonnell/wordrush/pkg/queue"
	"github.com/cbodonnell/wordrush/pkg/repositories"
	"github.com/cbodonnell/wordrush/pkg/state"
	"github.com/cbodonnell/wordrush/pkg/version"
	"github.com/cbodonnell/wordrush/pkg/workers"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional
	envErr := godotenv.Load()

	cfg := &config.Config{}
	cmd := config.NewCommand(cfg, func(ctx context.Context, cfg *config.Config) error {
		if envErr != nil && !os.IsNotExist(envErr) {
			log.Warn("Failed to load .env file: %v", envErr)
		}
		return run(ctx, cfg)
	})
	if err := cmd.Execute(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	parsedLogLevel, err := log.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)
	log.Info("Starting wordrush version %s", version.Get())

	metrics.RegisterMetrics()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	words, err := config.LoadWords(cfg.WordsFile)
	if err != nil {
		return err
	}

	repository, err := repositories.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open repository: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := repository.Close(closeCtx); err != nil {
			log.Error("Failed to close repository: %v", err)
		}
	}()

	suggester, err := newSuggester(cfg, words)
	if err != nil {
		return err
	}

	stateManager := state.NewInMemoryStateManager()
	broadcastMessageQueue := queue.NewUnboundedQueue[workers.BroadcastMessage]()
	saveRequestChan := make(chan workers.SaveRequest, workers.SaveRequestChannelSize)
	group := network.NewGroup()

	coordinator, err := game.NewCoordinator(game.NewCoordinatorOptions{
		StateManager:          stateManager,
		Repository:            repository,
		Suggester:             suggester,
		BroadcastMessageQueue: broadcastMessageQueue,
		SaveRequestChan:       saveRequestChan,
		TargetWords:           words.Targets,
		StarterWords:          words.Starter,
		LeaderboardSize:       cfg.LeaderboardSize,
		OracleTimeout:         cfg.OracleTimeout,
	})
	if err != nil {
		return err
	}
	if err := coordinator.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize game: %v", err)
	}

	// Workers outlive the listener so that queued broadcasts and saves are flushed.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancelWorkers()
		wg.Wait()
	}()

	broadcastWorker := workers.NewBroadcastMessageWorker(workers.NewBroadcastMessageWorkerOptions{
		Broadcaster:           group,
		BroadcastMessageQueue: broadcastMessageQueue,
	})
	saveGameStateWorker := workers.NewSaveGameStateWorker(workers.NewSaveGameStateWorkerOptions{
		Repository:      repository,
		SaveRequestChan: saveRequestChan,
		StateManager:    stateManager,
		Interval:        cfg.SaveInterval,
	})
	wg.Add(2)
	go func() {
		defer wg.Done()
		broadcastWorker.Start(workerCtx)
	}()
	go func() {
		defer wg.Done()
		saveGameStateWorker.Start(workerCtx)
	}()

	authProvider, err := newAuthProvider(ctx, cfg)
	if err != nil {
		return err
	}

	var tlsConfig *network.TLSConfig
	if cfg.TLSCert != "" {
		tlsConfig = &network.TLSConfig{CertFile: cfg.TLSCert, KeyFile: cfg.TLSKey}
	}
	server := network.NewWSServer(network.NewWSServerOptions{
		Bind:           cfg.Bind,
		Port:           cfg.Port,
		TLS:            tlsConfig,
		Prefix:         cfg.Prefix,
		AuthProvider:   authProvider,
		Coordinator:    coordinator,
		Group:          group,
		SendBufferSize: network.SessionSendBufferSize,
		Profile:        cfg.Profile,
	})
	log.Info("Serving on %s://%s:%d%s", cfg.Scheme(), cfg.Bind, cfg.Port, cfg.Prefix)

	return server.Start(ctx)
}

func newSuggester(cfg *config.Config, words *config.Words) (*oracle.Suggester, error) {
	var o oracle.Oracle
	switch {
	case cfg.VectorsFile != "":
		start := time.Now()
		vectors, err := oracle.LoadVectorFile(cfg.VectorsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load vectors: %v", err)
		}
		log.Info("Loaded %d word vectors in %s", vectors.Len(), time.Since(start))
		o = vectors
	case cfg.OracleURL != "":
		httpOracle, err := oracle.NewHTTPOracle(oracle.NewHTTPOracleOptions{URL: cfg.OracleURL})
		if err != nil {
			return nil, err
		}
		log.Info("Using remote oracle at %s", cfg.OracleURL)
		o = httpOracle
	default:
		log.Info("Using static oracle with %d entries", len(words.Neighbors))
		o = oracle.NewStaticOracle(words.Neighbors)
	}

	var lemmatizer oracle.Lemmatizer = oracle.LowercaseLemmatizer{}
	if cfg.Lemmatize {
		golem, err := oracle.NewGolemLemmatizer()
		if err != nil {
			return nil, fmt.Errorf("failed to load lemmatizer: %v", err)
		}
		lemmatizer = golem
	}

	return oracle.NewSuggester(oracle.NewSuggesterOptions{
		Oracle:     o,
		Lemmatizer: lemmatizer,
		Timeout:    cfg.OracleTimeout,
	})
}

func newAuthProvider(ctx context.Context, cfg *config.Config) (authproviders.AuthProvider, error) {
	switch cfg.Auth {
	case config.AuthFirebase:
		provider, err := authproviders.NewFirebaseAuthProvider(ctx, authproviders.NewFirebaseAuthProviderOptions{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsFile: cfg.FirebaseCredentials,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create firebase auth provider: %v", err)
		}
		return provider, nil
	default:
		return authproviders.NewAnonymousAuthProvider(), nil
	}
}
