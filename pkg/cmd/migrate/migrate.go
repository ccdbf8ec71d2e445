package migrate

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/cmd/cmdutil"
	"github.com/mpapenbr/racereplay/pkg/config"
	"github.com/mpapenbr/racereplay/pkg/db/migrate"
	"github.com/mpapenbr/racereplay/pkg/replaycache/factory"
)

func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "performs cache database migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startMigration(cmd)
		},
	}
	return cmd
}

func startMigration(cmd *cobra.Command) error {
	if _, _, err := cmdutil.SetupLogger(); err != nil {
		return err
	}
	t, err := factory.TypeOf(config.CacheURL)
	if err != nil {
		return err
	}
	if t == factory.TypeMemory {
		return fmt.Errorf("memory caches have no schema to migrate")
	}
	if err := cmdutil.WaitForCache(cmd.Context()); err != nil {
		log.Error("database not ready", log.ErrorField(err))
		return err
	}
	dbURL := config.CacheURL
	if t == factory.TypePostgres {
		dbURL = prepareURLForDB(dbURL)
	} else if !strings.HasPrefix(dbURL, "sqlite://") {
		dbURL = "sqlite://" + dbURL
	}
	log.Info("Migrating cache database", log.String("type", string(t)))
	return migrate.MigrateDb(dbURL)
}

func prepareURLForDB(url string) string {
	options := "sslmode=disable"
	if strings.Contains(url, "sslmode=") {
		return url
	}
	if strings.Contains(url, "?") {
		return fmt.Sprintf("%s&%s", url, options)
	} else {
		return fmt.Sprintf("%s?%s", url, options)
	}
}
