package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"minote-exporter/services/convert"
)

var (
	convertSource string
	convertOut    string
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert exported markdown notes into a JSON document",
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, skipped, err := convert.Convert(convertSource)
		if err != nil {
			return err
		}
		for _, s := range skipped {
			slog.Warn("skipped malformed block",
				"source", s.Source, "block", s.Block, "err", s.Err)
		}

		if err := convert.WriteJSON(convertOut, notes); err != nil {
			return err
		}
		fmt.Printf("Converted %d notes to %s (%d blocks skipped)\n",
			len(notes), convertOut, len(skipped))
		return nil
	},
}

func init() {
	flags := convertCmd.Flags()
	flags.StringVarP(&convertSource, "source", "s", "",
		"markdown file or directory to convert")
	flags.StringVarP(&convertOut, "out", "o", "notes.json", "output JSON file")
	convertCmd.MarkFlagRequired("source")
	rootCmd.AddCommand(convertCmd)
}
