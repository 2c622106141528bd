package commands

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"minote-exporter/lib/browser"
	"minote-exporter/services/export"
	"minote-exporter/services/export/db"
)

var (
	exportDomain   string
	exportOut      string
	exportSplit    bool
	exportFormat   string
	exportImages   bool
	exportDBPath   string
	exportHeadless bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every note from a live Mi Cloud session",
	Long: `Opens a browser window on the notes service, waits for you to sign
in, then walks the notes list card by card and writes every note to
markdown. Interrupting with Ctrl-C keeps everything exported so far.`,
	RunE: runExport,
}

func init() {
	flags := exportCmd.Flags()
	flags.StringVar(&exportDomain, "domain", "i.mi.com", "notes service domain")
	flags.StringVarP(&exportOut, "out", "o", ".", "output directory")
	flags.BoolVar(&exportSplit, "split", false,
		"write one file per note instead of a single combined file")
	flags.StringVar(&exportFormat, "format", "dd-MM-yyyy_HH-mm-ss",
		"timestamp template for per-note file names (with --split)")
	flags.BoolVar(&exportImages, "images", true, "download embedded images")
	flags.StringVar(&exportDBPath, "db", "sessions.db", "session history database")
	flags.BoolVar(&exportHeadless, "headless", false,
		"run the browser headless (needs a pre-authenticated profile)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	chrome, err := browser.NewChrome(ctx, browser.ChromeOptions{
		Headless: exportHeadless,
	})
	if err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}
	defer chrome.Close()

	store, err := db.Open(ctx, exportDBPath)
	if err != nil {
		return fmt.Errorf("opening session database: %w", err)
	}
	defer store.Close()

	mode := export.ModeCombined
	if exportSplit {
		mode = export.ModeSplit
	}

	listener := newSpinnerListener()
	ctrl, err := export.NewController(export.Options{
		Page:            export.NewPage(chrome, exportDomain),
		Domain:          exportDomain,
		OutputDir:       exportOut,
		Mode:            mode,
		TimestampFormat: exportFormat,
		ExportImages:    exportImages,
		Store:           store,
		Listener:        listener,
	})
	if err != nil {
		return err
	}

	fmt.Println("A browser window is opening. Sign in to your account;")
	fmt.Println("the export starts as soon as the notes list loads.")

	listener.start()
	err = ctrl.Run(ctx)
	listener.stop()
	if err != nil {
		return err
	}

	session := ctrl.Session()
	fmt.Printf("Exported %d notes (%d images) to %s\n",
		session.ProcessedCount, session.ImagesCount, session.OutputPath)
	return nil
}

// spinnerListener renders engine progress on a terminal spinner.
type spinnerListener struct {
	spin *spinner.Spinner
}

func newSpinnerListener() *spinnerListener {
	s := spinner.New(spinner.CharSets[14], time.Millisecond*100)
	s.Suffix = " waiting for the notes list..."
	return &spinnerListener{spin: s}
}

func (l *spinnerListener) start() { l.spin.Start() }
func (l *spinnerListener) stop()  { l.spin.Stop() }

func (l *spinnerListener) OnProgress(ev export.ProgressEvent) {
	l.spin.Suffix = fmt.Sprintf(" [%d/%d] %s", ev.Current, ev.Total, ev.LogLine)
}

func (l *spinnerListener) OnRecord(export.NoteRecord) {}

func (l *spinnerListener) OnComplete(ev export.CompleteEvent) {
	l.spin.Suffix = fmt.Sprintf(" done in %.1fs", float64(ev.ElapsedMs)/1000)
}

func (l *spinnerListener) OnError(message string) {
	l.spin.Suffix = " " + message
}
