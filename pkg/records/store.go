// Package records persists scraper output: per-task CSV listings, run
// metadata documents, and the directory layout both stages share.
package records

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"slidescraper/pkg/errs"
	"slidescraper/pkg/models"
)

var csvHeader = []string{"sequence_index", "title", "detail_url"}

// WriteCSV writes the listing records to path atomically. The parent
// directory is created if needed.
func WriteCSV(path string, recs []models.ListingRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.Wrap(errs.KindEnvironment, "failed to create output directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".csv-*.tmp")
	if err != nil {
		return errs.Wrap(errs.KindEnvironment, "failed to create temp file", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		tmp.Close()
		return errs.Wrap(errs.KindEnvironment, "failed to write csv header", err)
	}
	for _, r := range recs {
		row := []string{strconv.Itoa(r.SequenceIndex), r.Title, r.DetailURL}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return errs.Wrap(errs.KindEnvironment, "failed to write csv row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return errs.Wrap(errs.KindEnvironment, "failed to flush csv", err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.KindEnvironment, "failed to close temp file", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return errs.Wrap(errs.KindEnvironment, "failed to finalize csv file", err)
	}
	return nil
}

// ReadCSV loads listing records written by WriteCSV.
func ReadCSV(path string) ([]models.ListingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, fmt.Sprintf("cannot open %s", path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, errs.Wrap(errs.KindParsing, fmt.Sprintf("malformed csv %s", path), err)
	}
	if len(rows) == 0 {
		return nil, errs.Newf(errs.KindParsing, "csv %s has no header", path)
	}
	if len(rows[0]) < 3 || rows[0][0] != csvHeader[0] {
		return nil, errs.Newf(errs.KindParsing, "csv %s has unexpected header %v", path, rows[0])
	}

	recs := make([]models.ListingRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) < 3 {
			return nil, errs.Newf(errs.KindParsing, "csv %s row %d has %d fields", path, i+2, len(row))
		}
		seq, err := strconv.Atoi(row[0])
		if err != nil {
			return nil, errs.Wrap(errs.KindParsing,
				fmt.Sprintf("csv %s row %d has bad sequence index %q", path, i+2, row[0]), err)
		}
		recs = append(recs, models.ListingRecord{
			SequenceIndex: seq,
			Title:         row[1],
			DetailURL:     row[2],
		})
	}
	return recs, nil
}

// WriteMetadata writes the run summary document as indented JSON.
func WriteMetadata(path string, meta *models.RunMetadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errs.Wrap(errs.KindEnvironment, "failed to create output directory", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindEnvironment, "failed to encode metadata", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errs.Wrap(errs.KindEnvironment, "failed to write metadata", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errs.Wrap(errs.KindEnvironment, "failed to finalize metadata", err)
	}
	return nil
}

// ReadMetadata loads a run summary document.
func ReadMetadata(path string) (*models.RunMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, fmt.Sprintf("cannot read %s", path), err)
	}
	var meta models.RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errs.Wrap(errs.KindParsing, fmt.Sprintf("malformed metadata %s", path), err)
	}
	return &meta, nil
}

// LatestRunDir returns the most recent run directory under base. Run
// directory names start with a sortable timestamp, so lexicographic
// order is chronological order.
func LatestRunDir(base string) (string, error) {
	entries, err := os.ReadDir(base)
	if err != nil {
		return "", errs.Wrap(errs.KindNotFound, fmt.Sprintf("cannot read %s", base), err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", errs.Newf(errs.KindNotFound, "no run directories under %s", base)
	}
	sort.Strings(names)
	return filepath.Join(base, names[len(names)-1]), nil
}

// ListCSVFiles returns the listing CSV files in dir, optionally
// filtered by category and section. Empty filters match everything.
func ListCSVFiles(dir, category, section string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errs.Wrap(errs.KindNotFound, fmt.Sprintf("cannot read %s", dir), err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), ".csv")
		cat, sec, ok := splitStem(stem)
		if !ok {
			continue
		}
		if category != "" && category != "all" && cat != category {
			continue
		}
		if section != "" && section != "all" && sec != section {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// splitStem separates a file stem of the form {category}_{section}.
// Category slugs never contain underscores, so the last underscore is
// the separator.
func splitStem(stem string) (category, section string, ok bool) {
	i := strings.LastIndex(stem, "_")
	if i <= 0 || i == len(stem)-1 {
		return "", "", false
	}
	return stem[:i], stem[i+1:], true
}
