package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/filtering"
	"github.com/spigell/apply-assistant/internal/postings"
	"github.com/spigell/apply-assistant/internal/store"
)

var postingsCmd = &cobra.Command{
	Use:   "postings",
	Short: "Manage scraped job postings",
}

var postingsIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Filter, optionally analyze, and store postings from a scraped JSON file",
	Run: func(cmd *cobra.Command, _ []string) {
		ingestPostings(cmd)
	},
}

var postingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the stored postings of a user as JSON",
	Run: func(cmd *cobra.Command, _ []string) {
		listPostings(cmd)
	},
}

func init() {
	rootCmd.AddCommand(postingsCmd)
	postingsCmd.AddCommand(postingsIngestCmd, postingsListCmd)

	postingsIngestCmd.Flags().StringP("file", "f", "", "JSON file with scraped postings")
	postingsIngestCmd.Flags().StringP("user", "u", "", "user id owning the postings")
	postingsIngestCmd.Flags().Bool("analyze", false, "summarize postings with the ai provider (default from postings.analyze)")
	postingsIngestCmd.Flags().StringP("exclude-file", "e", "", "file with ids of postings to skip. Default is unset.")
	postingsIngestCmd.Flags().Bool("update-exclude-file", false, "append ingested postings to the exclude file")
	postingsIngestCmd.MarkFlagRequired("file")
	bindFlag(postingsIngestCmd, "postings.analyze", "analyze")
	bindFlag(postingsIngestCmd, "postings.exclude-file", "exclude-file")

	postingsListCmd.Flags().StringP("user", "u", "", "user id owning the postings")
}

func ingestPostings(cmd *cobra.Command) {
	logger, config := bootstrap("postings ingest")
	ctx := context.Background()

	file, _ := cmd.Flags().GetString("file")
	userID, _ := cmd.Flags().GetString("user")
	updateExcludeFile, _ := cmd.Flags().GetBool("update-exclude-file")
	cfg := config.Postings

	scraped, err := postings.ReadFile(file)
	if err != nil {
		logger.Fatal("reading postings", zap.Error(err))
	}
	logger.Info("getting postings", zap.String("file", file), zap.Int("count", len(scraped)))

	steps := []filtering.Filter{
		filtering.NewDuplicates(),
		filtering.NewExcludedCompanies(cfg.ExcludeCompanies),
		filtering.NewRequiredKeywords(cfg.RequiredKeywords),
		filtering.NewExcludeFile(cfg.ExcludeFile),
	}
	for _, status := range filtering.Describe(steps) {
		logger.Debug("filter", zap.String("name", status.Name), zap.Bool("enabled", status.Enabled), zap.Any("details", status.Details))
	}

	filtered, err := filtering.Run(ctx, steps, scraped, logger)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}
	if len(filtered) == 0 {
		logger.Info("exiting", zap.String("reason", "no postings left after filters"))
		return
	}

	a, err := newAssistant(ctx, config, logger, cfg.Analyze)
	if err != nil {
		logger.Fatal("building the assistant", zap.Error(err))
	}
	defer a.Close()

	report, err := a.ingester().Ingest(ctx, userID, filtered, cfg.Analyze)
	if err != nil {
		logger.Fatal("ingesting postings", zap.Error(err))
	}

	if updateExcludeFile {
		if err := appendExcluded(cfg.ExcludeFile, filtered); err != nil {
			logger.Fatal("updating exclude file", zap.Error(err))
		}
		logger.Info("appended to exclude file", zap.String("filename", cfg.ExcludeFile))
	}

	logger.Info("postings stored",
		zap.Int("count", len(report.Stored)),
		zap.Int("analyzed", report.Analyzed),
		zap.Int("analysis_failed", report.Failed),
	)
}

// appendExcluded records the external ids of the scraped postings.
func appendExcluded(path string, scraped []store.Posting) error {
	if path == "" {
		return fmt.Errorf("exclude file is not set (use --exclude-file or postings.exclude-file)")
	}
	excluded, err := filtering.LoadExcluded(path)
	if err != nil {
		return err
	}
	excluded.Append(scraped)
	return excluded.Save(path)
}

func listPostings(cmd *cobra.Command) {
	logger, config := bootstrap("postings list")
	ctx := context.Background()

	userID, _ := cmd.Flags().GetString("user")

	db, err := openStore(ctx, config)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}
	defer db.Close()

	list, err := db.Postings(ctx, userID)
	if err != nil {
		logger.Fatal("listing postings", zap.Error(err))
	}

	pretty, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		logger.Fatal("encoding postings", zap.Error(err))
	}
	fmt.Println(string(pretty))
}
