package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/server"
)

type ServeOptions struct {
	*RootOptions
	Port string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chore API and change feed",
		Long: `Serve the local database over HTTP so other devices can share it with
--server. Scheduled backups run here when object storage and a passphrase
are configured.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(opts.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			srv := server.New(db, opts.Config.BackupManagerConfig(), opts.logger)
			return srv.ListenAndServe(cmd.Context(), ":"+opts.Port)
		},
	}

	cmd.Flags().StringVar(&opts.Port, "port", rootOpts.Config.HTTP.Port, "port to listen on")
	return cmd
}
