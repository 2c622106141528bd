package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"minote-exporter/services/export/db"
)

var sessionsDBPath string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List past export sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := db.Open(cmd.Context(), sessionsDBPath)
		if err != nil {
			return err
		}
		defer store.Close()

		sessions, err := store.List(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{
			"ID", "Started", "Status", "Notes", "Images", "Mode", "Output",
		})
		for _, s := range sessions {
			t.AppendRow(table.Row{
				s.ID,
				s.StartedAt.Local().Format("2006-01-02 15:04"),
				s.Status,
				fmt.Sprintf("%d/%d", s.NotesCount, s.TotalCount),
				s.ImagesCount,
				s.OutputMode,
				s.OutputPath,
			})
		}
		t.Render()
		return nil
	},
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsDBPath, "db", "sessions.db",
		"session history database")
	rootCmd.AddCommand(sessionsCmd)
}
