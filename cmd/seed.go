package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/prepair-dev/prepair/internal/logger"
	"github.com/prepair-dev/prepair/internal/storage"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a question file into the question bank",
	Run: func(cmd *cobra.Command, _ []string) {
		seed(cmd)
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringP("file", "f", "questions.yaml", "YAML file with questions")
	seedCmd.Flags().BoolP("yes", "y", false, "do not ask for confirmation")
}

func seed(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	path := cmd.Flag("file").Value.String()
	questions, err := storage.LoadQuestionFile(path)
	if err != nil {
		logger.Fatal("loading question file", zap.Error(err))
	}
	logger.Info("question file loaded",
		zap.String("file", path),
		zap.Int("questions", len(questions)),
	)

	if cmd.Flag("yes").Value.String() == "false" {
		prompt := promptui.Select{
			Label: fmt.Sprintf("Seed %d questions into the bank?", len(questions)),
			Items: []string{PromptYes, PromptNo},
		}
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action != PromptYes {
			logger.Info("exiting", zap.String("reason", "seeding canceled"))
			return
		}
	}

	dsn, err := resolveDSN(config)
	if err != nil {
		logger.Fatal("loading database dsn", zap.Error(err))
	}
	db, err := storage.Connect(ctx, dsn, logger)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	if err := storage.Migrate(db); err != nil {
		logger.Fatal("migrating database", zap.Error(err))
	}

	if err := storage.SeedQuestions(ctx, db, questions, logger); err != nil {
		logger.Fatal("seeding questions", zap.Error(err))
	}
}
