package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mockly/pkg/database/client"
	"mockly/schema"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the interviews table",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		config := client.ReadConfig()
		if config.Type == client.TypeMemory {
			logger.Info("Memory store selected, nothing to migrate")
			return nil
		}
		drv, err := client.Open("mockly", config)
		if err != nil {
			logger.Error("Failed to initialize Ent driver", zap.Error(err))
			return err
		}
		defer drv.Close()

		if err := schema.Create(cmd.Context(), drv); err != nil {
			logger.Error("Failed to migrate database", zap.Error(err))
			return err
		}
		logger.Info("Database migrated", zap.String("type", config.Type))
		return nil
	},
}
