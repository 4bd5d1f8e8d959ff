package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/o1-screener/internal/storage"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and the database schema version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s\n", app, version)

		// Plain Open so that asking for the version never migrates a database.
		db, err := storage.Open(viper.GetString("database"))
		if err != nil {
			fmt.Printf("schema version: unavailable (%s)\n", err)
			return
		}
		defer db.Close()

		schema, err := storage.SchemaVersion(db)
		if err != nil {
			fmt.Printf("schema version: unavailable (%s)\n", err)
			return
		}
		fmt.Printf("schema version: %d\n", schema)

		applied, err := storage.AppliedMigrations(db)
		if err != nil {
			return
		}
		for _, m := range applied {
			fmt.Printf("  %s applied %s\n", m.Name, m.AppliedAt.Local().Format(time.DateTime))
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
