package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"slidescraper/pkg/config"
	"slidescraper/pkg/logger"
	"slidescraper/pkg/models"
	"slidescraper/pkg/scrape"
)

var (
	scrapeCategory string
	scrapeSection  string
	scrapeCount    int
	scrapeHeadless bool
	scrapeParallel int
	listCategories bool
	listSections   bool
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Collect presentation listings from category pages",
	Long: `Collect presentation titles and URLs from a SlideShare category page.

Each (category, section) pair becomes one task producing one CSV file.
Passing 'all' for the category, the section, or both expands into the
full cross product. Output lands in a timestamped directory under the
URL output directory, together with a scrape_info.json summary.`,
	Example: `  # 50 popular business presentations
  slidescraper scrape -c business -s popular -n 50

  # every section of one category, four browser windows
  slidescraper scrape -c design -s all -n 30 -p 4

  # see what categories exist
  slidescraper scrape --list-categories`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeCategory, "category", "c", "", "category slug, or 'all'")
	scrapeCmd.Flags().StringVarP(&scrapeSection, "section", "s", "popular", "section: featured, popular, new, or 'all'")
	scrapeCmd.Flags().IntVarP(&scrapeCount, "num", "n", 50, "target number of listings per task")
	scrapeCmd.Flags().BoolVar(&scrapeHeadless, "headless", true, "run the browser headless")
	scrapeCmd.Flags().IntVarP(&scrapeParallel, "parallel", "p", 1, "number of parallel browser windows")
	scrapeCmd.Flags().BoolVar(&listCategories, "list-categories", false, "print supported categories and exit")
	scrapeCmd.Flags().BoolVar(&listSections, "list-sections", false, "print supported sections and exit")

	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	if listCategories {
		for _, c := range models.Categories {
			fmt.Println(c)
		}
		return nil
	}
	if listSections {
		for _, s := range models.Sections {
			fmt.Printf("%-10s (%s ...)\n", s, s.Pattern())
		}
		return nil
	}

	if scrapeCategory == "" {
		return fmt.Errorf("--category is required (or use --list-categories)")
	}

	cfg, err := loadConfig(map[string]interface{}{
		"headless":     scrapeHeadless,
		"target-count": scrapeCount,
		"log-level":    logLevel,
	})
	if err != nil {
		return err
	}

	log := logger.GetLogger()
	scraper := scrape.New(cfg, scrapeParallel, nil, log)

	summary, err := scraper.Run(cmd.Context(), scrapeCategory, scrapeSection, scrapeCount)
	if err != nil {
		return err
	}

	fmt.Printf("Run directory: %s\n", summary.RunDir)
	fmt.Printf("Tasks: %d succeeded, %d failed, %d records total\n",
		summary.Metadata.Results.SuccessfulTasks,
		summary.Metadata.Results.FailedTasks,
		summary.Metadata.Results.TotalData)

	return nil
}

// loadConfig layers the config file, environment, and CLI flags, then
// initializes the global logger.
func loadConfig(flags map[string]interface{}) (*config.Config, error) {
	path := configFile
	if path == "" {
		if _, err := os.Stat("slidescraper.yaml"); err == nil {
			path = "slidescraper.yaml"
		}
	}

	cfg, err := config.Load(path, flags)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return cfg, nil
}
