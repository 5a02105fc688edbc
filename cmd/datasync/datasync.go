package datasync

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openvote/voteapi/internal/conf"
	"github.com/openvote/voteapi/internal/datastore"
	"github.com/openvote/voteapi/internal/datasync"
	"github.com/openvote/voteapi/internal/logging"
)

// Command creates the datasync subcommand, which loads category and item
// definition files into the database and exits.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datasync",
		Short: "Sync definition files into the database",
		Long:  "Load item group and category YAML definitions from the data directory into the database, then exit.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(settings)
		},
	}

	cmd.Flags().StringVar(&settings.Data.Dir, "dir", viper.GetString("data.dir"), "Directory holding definition files")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runSync(settings *conf.Settings) error {
	logging.Init(settings)

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	summary, err := datasync.New(store, settings.Data.Dir).SyncAll()
	if err != nil {
		return err
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	if len(summary.Errors) > 0 {
		return fmt.Errorf("%d definition file(s) failed to sync", len(summary.Errors))
	}
	return nil
}
