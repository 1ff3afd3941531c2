package main

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

type migrateOutput struct {
	Command        string   `json:"command"`
	Applied        int      `json:"applied,omitempty"`
	CurrentVersion string   `json:"currentVersion,omitempty"`
	Pending        []string `json:"pending,omitempty"`
}

func migrateCommand() *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := commandEnv(cmd)
			if err != nil {
				return err
			}
			storage, err := openStorage(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			if status {
				st, err := storage.MigrationStatus(cmd.Context())
				if err != nil {
					return err
				}
				out := migrateOutput{Command: "migrate status", CurrentVersion: st.CurrentVersion}
				for _, m := range st.PendingMigrations {
					out.Pending = append(out.Pending, m.Version)
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}

			applied, err := storage.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), migrateOutput{Command: "migrate", Applied: applied})
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "report applied and pending migrations without applying them")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
