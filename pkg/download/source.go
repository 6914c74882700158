package download

import (
	"os"
	"path/filepath"
	"strings"

	"slidescraper/pkg/errs"
	"slidescraper/pkg/records"
)

// Source selects which listing CSV files feed a download run. Exactly
// one of CSVFile, Folder, or FromLatest must be set.
type Source struct {
	// CSVFile names one listing file directly.
	CSVFile string
	// Folder names a run directory to read listing files from.
	Folder string
	// FromLatest picks the most recent run directory automatically.
	FromLatest bool
	// Category and Section filter the files found in a folder. Only
	// meaningful with Folder or FromLatest.
	Category string
	Section  string
}

// Resolve turns the selection into concrete CSV paths plus the run
// name that labels the output directory. An empty file list with a
// nil error means the selection matched nothing.
func (s Source) Resolve(urlDir string) ([]string, string, error) {
	modes := 0
	if s.CSVFile != "" {
		modes++
	}
	if s.Folder != "" {
		modes++
	}
	if s.FromLatest {
		modes++
	}
	if modes == 0 {
		return nil, "", errs.New(errs.KindConfiguration,
			"one of --csv-file, --folder, or --from-latest is required")
	}
	if modes > 1 {
		return nil, "", errs.New(errs.KindConfiguration,
			"--csv-file, --folder, and --from-latest are mutually exclusive")
	}

	if s.CSVFile != "" {
		if s.Category != "" || s.Section != "" {
			return nil, "", errs.New(errs.KindConfiguration,
				"category and section filters only apply to --folder or --from-latest")
		}
		if _, err := os.Stat(s.CSVFile); err != nil {
			return nil, "", errs.Wrap(errs.KindNotFound, "csv file not found", err)
		}
		return []string{s.CSVFile}, filepath.Base(filepath.Dir(s.CSVFile)), nil
	}

	folder := s.Folder
	if s.FromLatest {
		latest, err := records.LatestRunDir(urlDir)
		if err != nil {
			return nil, "", err
		}
		folder = latest
	}

	files, err := records.ListCSVFiles(folder, s.Category, s.Section)
	if err != nil {
		return nil, "", err
	}
	return files, filepath.Base(folder), nil
}

// csvStem returns the file name without directory or extension.
func csvStem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ".csv")
}
