package cli

import (
	"database/sql"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dukerupert/chorewheel/internal/backup"
	"github.com/dukerupert/chorewheel/internal/database"
	"github.com/dukerupert/chorewheel/internal/store"
)

func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Encrypted database backups",
		Long: `Snapshot the local database, encrypt it with CHOREWHEEL_BACKUP_PASSPHRASE
and upload it to the configured S3 bucket.`,
	}
	cmd.AddCommand(newBackupRunCommand(rootOpts))
	cmd.AddCommand(newBackupListCommand(rootOpts))
	cmd.AddCommand(newBackupRestoreCommand(rootOpts))
	return cmd
}

func (o *RootOptions) backupManager() (*backup.Manager, *sql.DB, error) {
	db, err := database.Open(o.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	m := backup.NewManager(o.Config.BackupManagerConfig(), db, store.NewBackupStore(db), nil, o.logger.With("component", "backup"))
	return m, db, nil
}

func newBackupRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Take a backup now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, db, err := opts.backupManager()
			if err != nil {
				return err
			}
			defer db.Close()

			b, err := m.RunNow(cmd.Context())
			if err != nil {
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), b)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup %d uploaded to %s (%d bytes)\n", b.ID, b.ObjectKey, b.SizeBytes)
			return nil
		},
	}
}

func newBackupListCommand(opts *RootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, db, err := opts.backupManager()
			if err != nil {
				return err
			}
			defer db.Close()

			backups, err := m.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.Format == "json" {
				return writeJSON(out, backups)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tSTATUS\tSIZE\tFILE")
			for _, b := range backups {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", b.ID, b.CreatedAt.Format("2006-01-02 15:04"), b.Status, b.SizeBytes, b.Filename)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of backups to show")
	return cmd
}

func newBackupRestoreCommand(opts *RootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Download and decrypt a backup",
		Long: `Download a completed backup, decrypt it and write it to --out (default
<db>.restored). The live database is never overwritten; stop the server and
move the restored file into place yourself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid backup id %q", args[0])
			}
			dst := out
			if dst == "" {
				dst = opts.DBPath + ".restored"
			}
			if dst == opts.DBPath {
				return fmt.Errorf("refusing to restore over the open database %s", dst)
			}

			m, db, err := opts.backupManager()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := m.Restore(cmd.Context(), id, dst); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "backup %d restored to %s\n", id, dst)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "file to write the restored database to")
	return cmd
}
