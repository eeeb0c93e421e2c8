// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/cmd/chatrelay/backend"
	apicmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve/api"
	relaycmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve/relay"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

type ServeCommander struct {
	cfg       *config.Config
	configDir string
	logFile   string
	debug     bool
	logger    *zap.Logger
}

const serveLongDesc string = `Run chatrelay services.

Use subcommands to run individual services or all services together:
  chatrelay serve          Run the relay and the history API together
  chatrelay serve api      Run just the history API server
  chatrelay serve relay    Run just the relay server

Running both together shares one store between them.`

const serveShortDesc string = "Run chatrelay services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			keys := append(slices.Clone(relaycmder.RelayFlags), config.FlagRelayListen, config.FlagAPIListen)
			config.BindRegisteredFlags(v, cmd, config.Flags, keys)

			cmder.cfg, err = config.FromViper(v)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayListen, new(string))
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, new(string))
	relaycmder.AddRelayFlags(cmd)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(relaycmder.NewRelayCmd())

	return cmd
}

func (c *ServeCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	// Create shared storer
	driver, err := backend.NewStorageDriver(ctx, c.cfg.Storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	p, closeRelay, err := relaycmder.NewRelay(c.cfg, c.configDir, driver, c.logger)
	if err != nil {
		return err
	}
	defer closeRelay()

	apiServer := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, driver, c.logger)
	defer func() { _ = apiServer.Shutdown() }()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := p.Run(); err != nil {
			errChan <- fmt.Errorf("relay error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		return nil
	case <-ctx.Done():
		return nil
	}
}

// newLogger logs to stdout and, with --log-file, to a JSON file as well.
func (c *ServeCommander) newLogger() (func(), error) {
	console := logger.NewLogger(c.debug)
	if c.logFile == "" {
		c.logger = console
		return func() { _ = c.logger.Sync() }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(logger.WithDebug(c.debug), logger.WithJSON(true), logger.WithWriter(f))
	c.logger = logger.Multi(console, file)
	return func() {
		_ = c.logger.Sync()
		_ = f.Close()
	}, nil
}
