package records

import (
	"fmt"
	"hash/fnv"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"slidescraper/pkg/models"
)

const (
	maxNameLength    = 40
	maxFileBaseLen   = 30
	maxDirPathLength = 200
	maxFilePathLen   = 250
)

var (
	illegalChars = regexp.MustCompile("[<>:\"/\\\\|?*'`]")
	whitespace   = regexp.MustCompile(`\s+`)
	trimLeading  = regexp.MustCompile(`^[._\-\s]+`)
	trimTrailing = regexp.MustCompile(`[._\-\s]+$`)
)

// Sanitize turns an arbitrary title into a safe directory or file
// name component. The result never contains path separators and is
// never empty.
func Sanitize(name string) string {
	if name == "" {
		return "unknown"
	}

	name = illegalChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(whitespace.ReplaceAllString(name, " "))
	name = trimTrailing.ReplaceAllString(name, "")
	name = trimLeading.ReplaceAllString(name, "")

	if len(name) > maxNameLength {
		name = truncateAtWord(name, maxNameLength)
	}
	if name == "" {
		return "unknown"
	}
	return name
}

// truncateAtWord shortens s to at most max bytes, preferring a word
// boundary. A single overlong word is cut hard.
func truncateAtWord(s string, max int) string {
	words := strings.Fields(s)
	truncated := ""
	for _, w := range words {
		candidate := strings.TrimSpace(truncated + " " + w)
		if len(candidate) > max {
			break
		}
		truncated = candidate
	}
	if truncated != "" {
		return truncated
	}
	return truncateRunes(s, max)
}

// truncateRunes returns the longest prefix of s no larger than max
// bytes that does not split a multibyte rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// DeriveRunDir builds a run directory path under base from the start
// timestamp and the run parameters. Parameter keys are sorted so the
// same inputs always produce the same name.
func DeriveRunDir(base string, ts time.Time, params map[string]string) string {
	parts := []string{ts.Format("2006-01-02_15-04-05")}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}

	return filepath.Join(base, strings.Join(parts, "_"))
}

// CSVFileName returns the per-task listing file name.
func CSVFileName(task models.CrawlTask) string {
	return task.Name() + ".csv"
}

// ItemDirName returns the directory path for one presentation under
// parent. When the full path would be too long for conservative
// filesystem limits, the title portion collapses to a short hash form.
func ItemDirName(parent string, seq int, title string) string {
	sanitized := Sanitize(title)
	dir := filepath.Join(parent, fmt.Sprintf("%03d_%s", seq, sanitized))

	if len(dir) > maxDirPathLength {
		short := truncateRunes(sanitized, 20)
		short = fmt.Sprintf("%s_%d", short, titleHash(title))
		dir = filepath.Join(parent, fmt.Sprintf("%03d_%s", seq, short))
	}
	return dir
}

// SlidePath returns the file path for one slide image inside dir.
// Overlong paths fall back to a bare ordinal name.
func SlidePath(dir, title string, ordinal int) string {
	base := truncateRunes(Sanitize(title), maxFileBaseLen)
	path := filepath.Join(dir, fmt.Sprintf("%s_%03d.jpg", base, ordinal))
	if len(path) > maxFilePathLen {
		path = filepath.Join(dir, fmt.Sprintf("slide_%03d.jpg", ordinal))
	}
	return path
}

func titleHash(title string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(title))
	return h.Sum32() % 10000
}

// TitleFromURL derives a readable title from a presentation URL when
// the page itself yields none. Detail URLs look like /username/title-slug.
func TitleFromURL(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if i := strings.Index(trimmed, "?"); i >= 0 {
		trimmed = trimmed[:i]
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 {
		return "unknown"
	}
	slug := parts[len(parts)-1]
	if slug == "" {
		return "unknown"
	}

	words := strings.Split(slug, "-")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return Sanitize(strings.Join(words, " "))
}
