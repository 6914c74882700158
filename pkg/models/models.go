// Package models defines the core data types shared across the scraper:
// crawl tasks, listing records, slide images, and run metadata.
package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// BaseURL is the site root all category pages hang off of.
const BaseURL = "https://www.slideshare.net"

// Section identifies one of the curated blocks on a category page.
type Section string

const (
	SectionFeatured Section = "featured"
	SectionPopular  Section = "popular"
	SectionNew      Section = "new"
)

// Sections lists the supported sections in display order.
var Sections = []Section{SectionFeatured, SectionPopular, SectionNew}

// ParseSection validates a section name from user input.
func ParseSection(s string) (Section, error) {
	switch Section(strings.ToLower(strings.TrimSpace(s))) {
	case SectionFeatured:
		return SectionFeatured, nil
	case SectionPopular:
		return SectionPopular, nil
	case SectionNew:
		return SectionNew, nil
	default:
		return "", fmt.Errorf("unknown section %q (valid: featured, popular, new)", s)
	}
}

// Pattern returns the heading prefix that identifies this section's
// block on a category page.
func (s Section) Pattern() string {
	switch s {
	case SectionFeatured:
		return "Featured in"
	case SectionPopular:
		return "Most popular in"
	case SectionNew:
		return "New in"
	default:
		return ""
	}
}

// Categories lists every category slug the site serves.
var Categories = []string{
	"business",
	"mobile",
	"social-media",
	"marketing",
	"technology",
	"art-photos",
	"career",
	"design",
	"education",
	"presentations-public-speaking",
	"government-nonprofit",
	"healthcare",
	"internet",
	"law",
	"leadership-management",
	"automotive",
	"engineering",
	"software",
	"recruiting-hr",
	"retail",
	"sales",
	"services",
	"science",
	"small-business-entrepreneurship",
	"food",
	"environment",
	"economy-finance",
	"data-analytics",
	"investor-relations",
	"sports",
	"spiritual",
	"news-politics",
	"travel",
	"self-improvement",
	"real-estate",
	"entertainment-humor",
	"health-medicine",
	"devices-hardware",
	"lifestyle",
}

var categorySet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Categories))
	for _, c := range Categories {
		m[c] = struct{}{}
	}
	return m
}()

// IsValidCategory reports whether slug is a supported category.
func IsValidCategory(slug string) bool {
	_, ok := categorySet[slug]
	return ok
}

// CategoryURL returns the category page URL for a slug.
func CategoryURL(category string) string {
	return BaseURL + "/category/" + category
}

// CrawlTask describes one (category, section) listing to collect.
type CrawlTask struct {
	Category    string
	Section     Section
	TargetCount int
}

// Name returns a short identifier used in logs and file names.
func (t CrawlTask) Name() string {
	return t.Category + "_" + string(t.Section)
}

// ExpandTasks expands the category and section arguments, either of
// which may be "all", into the concrete task list. Order follows the
// category list, sections nested within each category.
func ExpandTasks(category, section string, targetCount int) ([]CrawlTask, error) {
	if targetCount <= 0 {
		return nil, fmt.Errorf("target count must be positive, got %d", targetCount)
	}

	var cats []string
	if strings.EqualFold(category, "all") {
		cats = Categories
	} else {
		if !IsValidCategory(category) {
			return nil, fmt.Errorf("unknown category %q, see --list-categories", category)
		}
		cats = []string{category}
	}

	var secs []Section
	if strings.EqualFold(section, "all") {
		secs = Sections
	} else {
		s, err := ParseSection(section)
		if err != nil {
			return nil, err
		}
		secs = []Section{s}
	}

	tasks := make([]CrawlTask, 0, len(cats)*len(secs))
	for _, c := range cats {
		for _, s := range secs {
			tasks = append(tasks, CrawlTask{Category: c, Section: s, TargetCount: targetCount})
		}
	}
	return tasks, nil
}

// ListingRecord is one presentation collected from a category page.
type ListingRecord struct {
	SequenceIndex int
	Title         string
	DetailURL     string
}

// DownloadTask points a download worker at one presentation.
type DownloadTask struct {
	Record  ListingRecord
	CSVStem string
	RunName string
}

// SlideImage is one slide extracted from a presentation detail page.
type SlideImage struct {
	Ordinal   int
	SourceURL string
	LocalPath string
}

// RunResults aggregates per-task outcomes for a finished run.
type RunResults struct {
	TotalTasks      int      `json:"total_tasks"`
	SuccessfulTasks int      `json:"successful_tasks"`
	FailedTasks     int      `json:"failed_tasks"`
	TotalData       int      `json:"total_data"`
	ExecutionTime   float64  `json:"execution_time"`
	Files           []string `json:"files"`
}

// RunMetadata is the summary document written next to a run's output.
type RunMetadata struct {
	Timestamp  string            `json:"timestamp"`
	Parameters map[string]string `json:"parameters"`
	Results    RunResults        `json:"results"`
	SystemInfo map[string]string `json:"system_info"`
}

// NewRunMetadata builds metadata for a run started at ts.
func NewRunMetadata(ts time.Time, params map[string]string) *RunMetadata {
	p := make(map[string]string, len(params))
	for k, v := range params {
		p[k] = v
	}
	return &RunMetadata{
		Timestamp:  ts.Format(time.RFC3339),
		Parameters: p,
		SystemInfo: map[string]string{},
	}
}

// SortedParamKeys returns the metadata parameter keys in sorted order.
func (m *RunMetadata) SortedParamKeys() []string {
	keys := make([]string, 0, len(m.Parameters))
	for k := range m.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
