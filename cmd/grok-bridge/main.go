package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/andreazorzetto/yh/highlight"
	"github.com/hokaccha/go-prettyjson"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/streamgate/grok-bridge/internal/clock"
	"github.com/streamgate/grok-bridge/internal/config"
	"github.com/streamgate/grok-bridge/internal/log"
	"github.com/streamgate/grok-bridge/store"
)

const version = "0.1.0"

func main() {
	configPath := configPathArg()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			handleConfigCommand(configPath)
			return
		case "version", "--version", "-v":
			fmt.Println("grok-bridge " + version)
			return
		case "stats":
			handleStatsCommand(configPath)
			return
		}
	}

	startServer(configPath)
}

// configPathArg scans the arguments for a --config/-c flag.
func configPathArg() string {
	for i := 1; i < len(os.Args); i++ {
		if os.Args[i] == "--config" || os.Args[i] == "-c" {
			if i+1 < len(os.Args) {
				return os.Args[i+1]
			}
		}
	}

	return ""
}

func mustLoadConfig(path string) config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	return cfg
}

func handleConfigCommand(configPath string) {
	cfg := mustLoadConfig(configPath)

	format := "yml"

	for i := 2; i < len(os.Args); i++ {
		if os.Args[i] == "--format" || os.Args[i] == "-f" {
			if i+1 < len(os.Args) {
				format = os.Args[i+1]
			}
		}
	}

	var output string

	switch format {
	case "json":
		b, err := prettyjson.Marshal(cfg)
		if err != nil {
			fmt.Printf("failed to render config: %v\n", err)
			os.Exit(1)
		}

		output = string(b)
	default:
		b, err := yaml.Marshal(cfg)
		if err != nil {
			fmt.Printf("failed to render config: %v\n", err)
			os.Exit(1)
		}

		output, err = highlight.Highlight(bytes.NewBuffer(b))
		if err != nil {
			fmt.Printf("failed to render config: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Println(output)
}

func handleStatsCommand(configPath string) {
	cfg := mustLoadConfig(configPath)

	s, err := store.Open(cfg.Store.DSN)
	if err != nil {
		fmt.Printf("failed to open store: %v\n", err)
		os.Exit(1)
	}

	defer s.Close()

	snap, err := s.StatsSnapshot(context.Background(), 10, time.Now().UnixMilli())
	if err != nil {
		fmt.Printf("failed to read stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("active=%d expired=%d\n", snap.ActiveTotal, snap.ExpiredTotal)

	for _, t := range snap.TopTokens {
		fmt.Printf("  ...%s: %d\n", t.TokenSuffix, t.Count)
	}
}

type fxLogger struct{}

func (l *fxLogger) LogEvent(event fxevent.Event) {
	log.Debug(context.Background(), "fx event", log.Any("event", event))
}

func newLogger(cfg config.Config) (*log.Logger, error) {
	var (
		z   *zap.Logger
		err error
	)

	if cfg.Debug {
		z, err = zap.NewDevelopment()
	} else {
		z, err = zap.NewProduction()
	}

	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	logger := log.New(z)
	logger.AddHook(log.TraceHook())
	log.SetDefault(logger)

	return logger, nil
}

func startServer(configPath string) {
	app := fx.New(
		fx.WithLogger(func() fxevent.Logger { return &fxLogger{} }),
		fx.Provide(func() (config.Config, error) { return config.Load(configPath) }),
		fx.Provide(newLogger),
		fx.Provide(func() clock.Clock { return clock.Real{} }),
		fx.Provide(func(cfg config.Config) (*store.Store, error) { return store.Open(cfg.Store.DSN) }),
		fx.Invoke(func(*log.Logger) {}),
		fx.Invoke(registerCleanupTicker),
	)

	app.Run()
}

// registerCleanupTicker wires a background expiry sweep into the fx
// lifecycle: a ticking goroutine started on OnStart and stopped on OnStop.
func registerCleanupTicker(lc fx.Lifecycle, cfg config.Config, s *store.Store, clk clock.Clock) {
	stop := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(cfg.Store.CleanupInterval.Std())
				defer ticker.Stop()

				for {
					select {
					case <-stop:
						return
					case <-ticker.C:
						if _, err := s.CleanupExpired(context.Background(), cfg.Store.CleanupBatchLimit, clk.Now().UnixMilli(), ""); err != nil {
							log.Error(context.Background(), "cleanup expired conversations", log.Cause(err))
						}
					}
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(stop)
			return s.Close()
		},
	})
}
