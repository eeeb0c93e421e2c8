// Package apicmder provides the history API server cobra command.
package apicmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/chatrelay/api"
	"github.com/papercomputeco/chatrelay/cmd/chatrelay/backend"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

type apiCommander struct {
	cfg       *config.Config
	configDir string
	debug     bool

	logger *zap.Logger
}

const apiLongDesc string = `Run the history API server for inspecting relayed turns.

Run standalone, the API needs a persistent store shared with the relay: pass
--sqlite or --postgres, or keep chatrelay.db in one of the default locations
(./chatrelay.db, ./.chatrelay/chatrelay.db, ~/.chatrelay/chatrelay.db).

Routes:
  GET /ping                 Liveness
  GET /turns                Newest turns (?limit=, ?subject=)
  GET /turns/:id            One turn
  GET /stats                Aggregate counts`

const apiShortDesc string = "Run the history API server"

var apiFlags = []string{
	config.FlagAPIListenStandalone,
	config.FlagSQLite,
	config.FlagPostgres,
}

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, apiFlags)

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

	for _, key := range apiFlags {
		config.AddStringFlag(cmd, config.Flags, key, new(string))
	}

	return cmd
}

func (c *apiCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	storage := c.cfg.Storage
	if storage.PostgresDSN == "" {
		path, err := backend.ResolveSQLitePath(storage.SQLitePath)
		switch {
		case errors.Is(err, backend.ErrNoSQLiteDatabase):
			c.logger.Warn("no database found; serving an empty in-memory store")
		case err != nil:
			return err
		default:
			storage.SQLitePath = path
		}
	}

	driver, err := backend.NewStorageDriver(ctx, storage, c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()

	server := api.NewServer(api.Config{ListenAddr: c.cfg.API.Listen}, driver, c.logger)
	return server.Run()
}
