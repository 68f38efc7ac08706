package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	Long: `Connect to the configured database and apply every pending migration.

Example:
  BANKING_DB_DRIVER=sqlite3 BANKING_SQLITE_PATH=bank.db banking migrate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		db, err := openDatabase(cfg, logger, 1)
		if err != nil {
			logger.Error("Migration failed", zap.Error(err))
			return err
		}
		return db.Close()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
