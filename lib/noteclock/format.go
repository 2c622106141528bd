package noteclock

import (
	"regexp"
	"strings"
)

// DefaultLayout stamps export file and directory names.
const DefaultLayout = "02-01-2006_15-04-05"

// CreatedAtLayout renders the "Created at" footer of emitted notes.
const CreatedAtLayout = "02/01/2006 15:04"

var templateTokens = strings.NewReplacer(
	"yyyy", "2006",
	"yy", "06",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
)

var templateValid = regexp.MustCompile(`(2006|06|01|02|15|04|05)`)

// LayoutFromTemplate converts a date template using yyyy/MM/dd/HH/mm/ss
// tokens into a Go layout. Templates carrying no known token fall back to
// DefaultLayout rather than producing constant file names.
func LayoutFromTemplate(template string) string {
	if template == "" {
		return DefaultLayout
	}
	layout := templateTokens.Replace(template)
	if !templateValid.MatchString(layout) {
		return DefaultLayout
	}
	return layout
}

var seedUnsafe = regexp.MustCompile(`[^0-9A-Za-z_-]+`)

// SanitizeSeed reduces a free-form label to a token safe inside a file
// name, for disambiguating image names across notes.
func SanitizeSeed(seed string) string {
	out := seedUnsafe.ReplaceAllString(strings.TrimSpace(seed), "_")
	out = strings.Trim(out, "_")
	if out == "" {
		return "unknown"
	}
	return out
}

var filenameReserved = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFilename makes name safe as a file name on the common platforms.
func SanitizeFilename(name string) string {
	out := filenameReserved.ReplaceAllString(name, "_")
	out = strings.Trim(out, " .\t\n")
	if out == "" {
		return "note"
	}
	return out
}
