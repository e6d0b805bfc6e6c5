package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/apply-assistant/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question and posting endpoints over HTTP",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default from server.addr)")
	bindFlag(serveCmd, "server.addr", "addr")
}

func serve() {
	logger, config := bootstrap("serve")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newAssistant(ctx, config, logger, true)
	if err != nil {
		logger.Fatal("building the assistant", zap.Error(err))
	}
	defer a.Close()

	srv := server.New(config.Server, server.Dependencies{
		Assistant:       a.session,
		Postings:        a.ingester(),
		AnalyzePostings: config.Postings.Analyze,
		Tuning: server.Tuning{
			Templates:    config.Prompts,
			HistoryLimit: config.Tuning.HistoryLimit,
			AnswerLimit:  config.Tuning.AnswerLimit,
			FilterByUser: config.Tuning.FilterByUser,
		},
		Logger: logger,
	})

	if err := srv.Run(ctx); err != nil {
		logger.Fatal("serving http", zap.Error(err))
	}
	logger.Info("exiting", zap.String("reason", "shutdown requested"))
}
