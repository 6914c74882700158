package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"slidescraper/pkg/download"
	"slidescraper/pkg/logger"
)

var (
	dlCSVFile    string
	dlFolder     string
	dlFromLatest bool
	dlCategory   string
	dlSection    string
	dlOutput     string
	dlOverwrite  bool
	dlHeadless   bool
	dlDelay      time.Duration
	dlRetries    int
	dlParallel   int
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download slide images for collected presentations",
	Long: `Download every slide of the presentations listed in one or more CSV
files produced by 'scrape'.

The source is one of --csv-file, --folder, or --from-latest. With
--folder or --from-latest the file set can be narrowed by category and
section. Slides are stored as JPEG; existing files are skipped unless
--overwrite is given, so rerunning after an interruption picks up where
the last run stopped.`,
	Example: `  # everything from the most recent scrape run
  slidescraper download --from-latest

  # one file, four workers
  slidescraper download --csv-file output_url/2025-03-14_09-26-53_category=business_num=50_section=popular/business_popular.csv -p 4

  # only the popular sections from a specific run
  slidescraper download --folder output_url/2025-03-14_09-26-53_category=all_num=50_section=all -s popular`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().StringVar(&dlCSVFile, "csv-file", "", "one listing CSV file to download")
	downloadCmd.Flags().StringVar(&dlFolder, "folder", "", "run directory holding listing CSV files")
	downloadCmd.Flags().BoolVar(&dlFromLatest, "from-latest", false, "use the most recent run directory")
	downloadCmd.Flags().StringVarP(&dlCategory, "category", "c", "", "only files for this category")
	downloadCmd.Flags().StringVarP(&dlSection, "section", "s", "", "only files for this section")
	downloadCmd.Flags().StringVar(&dlOutput, "output", "", "override the files output directory")
	downloadCmd.Flags().BoolVarP(&dlOverwrite, "overwrite", "o", false, "re-download slides that already exist")
	downloadCmd.Flags().BoolVar(&dlHeadless, "headless", true, "run the browser headless")
	downloadCmd.Flags().DurationVarP(&dlDelay, "delay", "d", 500*time.Millisecond, "pause between slide downloads")
	downloadCmd.Flags().IntVarP(&dlRetries, "retries", "r", 3, "retry budget for transient failures")
	downloadCmd.Flags().IntVarP(&dlParallel, "parallel", "p", 2, "number of parallel browser workers")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{
		"headless":    dlHeadless,
		"workers":     dlParallel,
		"delay":       dlDelay,
		"max-retries": dlRetries,
		"overwrite":   dlOverwrite,
		"log-level":   logLevel,
	})
	if err != nil {
		return err
	}
	if dlOutput != "" {
		cfg.Output.FilesDir = dlOutput
	}

	src := download.Source{
		CSVFile:    dlCSVFile,
		Folder:     dlFolder,
		FromLatest: dlFromLatest,
		Category:   dlCategory,
		Section:    dlSection,
	}

	d := download.New(cfg, nil, logger.GetLogger())
	summary, err := d.Run(cmd.Context(), src)
	if err != nil {
		return err
	}

	if summary.Tasks == 0 {
		fmt.Println("Nothing to download.")
		return nil
	}
	fmt.Printf("Output directory: %s\n", summary.OutputDir)
	fmt.Printf("Presentations: %d succeeded, %d failed\n", summary.Successful, summary.Failed)
	fmt.Printf("Slides: %d written, %d already present\n", summary.SlidesWritten, summary.SlidesSkipped)

	return nil
}
