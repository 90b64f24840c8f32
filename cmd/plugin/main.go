package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/guseggert/dhplugin/config"
	"github.com/guseggert/dhplugin/internal/status"
	"github.com/guseggert/dhplugin/plugin"
	"github.com/guseggert/dhplugin/proxy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	app := &cli.App{
		Name:  "dhplugin",
		Usage: "runs a plugin against the plugin proxy and logs what it receives",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to a JSON config file. A bare file name is searched for in the working directory and its parents.",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Minimum log level. One of [debug,info,warn,error].",
				Value: "info",
			},
			&cli.StringFlag{
				Name:  "status-addr",
				Usage: "The address for the status HTTP server to listen on. Overrides STATUS_LISTEN_ADDR; disabled if both are empty.",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		log.Print(err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for configuration errors and 1 for anything else.
func exitCode(err error) int {
	if errors.Is(err, config.ErrConfig) {
		return 2
	}
	return 1
}

func run(cliCtx *cli.Context) error {
	level, err := zapcore.ParseLevel(cliCtx.String("log-level"))
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	logger, err := zap.NewDevelopment(zap.IncreaseLevel(level))
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(cliCtx.String("config"))
	if err != nil {
		return err
	}
	if addr := cliCtx.String("status-addr"); addr != "" {
		cfg.StatusListenAddr = addr
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	runner := plugin.NewRunner(cfg, &loggingPlugin{log: logger.Named("plugin").Sugar()},
		plugin.WithLogger(logger),
		plugin.WithMetrics(proxy.NewMetrics(reg)),
	)

	if cfg.StatusListenAddr != "" {
		statusServer := status.NewServer(logger.Sugar(), cfg.StatusListenAddr, runner, reg)
		go func() {
			if err := statusServer.Run(); err != nil {
				logger.Sugar().Errorf("status server: %s", err)
			}
		}()
		defer statusServer.Stop()
	}

	ctx, stop := signal.NotifyContext(cliCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runner.Run(ctx)
}
