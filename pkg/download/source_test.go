package download

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidescraper/pkg/errs"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644))
	}
}

func TestResolveRequiresExactlyOneMode(t *testing.T) {
	_, _, err := Source{}.Resolve("urls")
	require.Error(t, err)
	assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))

	_, _, err = Source{CSVFile: "a.csv", FromLatest: true}.Resolve("urls")
	require.Error(t, err)
	assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))

	_, _, err = Source{Folder: "run", CSVFile: "a.csv"}.Resolve("urls")
	assert.Error(t, err)
}

func TestResolveCSVFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "2025-03-14_09-00-00_category=business")
	writeFiles(t, dir, "business_popular.csv")

	path := filepath.Join(dir, "business_popular.csv")
	files, runName, err := Source{CSVFile: path}.Resolve("unused")
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)
	assert.Equal(t, "2025-03-14_09-00-00_category=business", runName)
}

func TestResolveCSVFileMissing(t *testing.T) {
	_, _, err := Source{CSVFile: "/nope/missing.csv"}.Resolve("unused")
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestResolveCSVFileRejectsFilters(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "business_popular.csv")

	_, _, err := Source{
		CSVFile:  filepath.Join(dir, "business_popular.csv"),
		Category: "business",
	}.Resolve("unused")
	require.Error(t, err)
	assert.Equal(t, errs.KindConfiguration, errs.KindOf(err))
}

func TestResolveFolderWithFilters(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "business_popular.csv", "business_new.csv", "design_popular.csv")

	files, _, err := Source{Folder: dir, Section: "popular"}.Resolve("unused")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	files, _, err = Source{Folder: dir, Category: "design", Section: "popular"}.Resolve("unused")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "design_popular.csv"), files[0])
}

func TestResolveFolderNoMatchesIsNotError(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "business_popular.csv")

	files, _, err := Source{Folder: dir, Category: "sports"}.Resolve("unused")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestResolveFromLatest(t *testing.T) {
	urlDir := t.TempDir()
	older := filepath.Join(urlDir, "2025-03-13_08-00-00_category=all")
	newer := filepath.Join(urlDir, "2025-03-14_09-00-00_category=all")
	writeFiles(t, older, "business_popular.csv")
	writeFiles(t, newer, "design_new.csv")

	files, runName, err := Source{FromLatest: true}.Resolve(urlDir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(newer, "design_new.csv"), files[0])
	assert.Equal(t, "2025-03-14_09-00-00_category=all", runName)
}

func TestResolveFromLatestEmptyBase(t *testing.T) {
	_, _, err := Source{FromLatest: true}.Resolve(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestCSVStem(t *testing.T) {
	assert.Equal(t, "business_popular", csvStem("/a/b/business_popular.csv"))
	assert.Equal(t, "design_new", csvStem("design_new.csv"))
}
