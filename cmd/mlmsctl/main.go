// Command mlmsctl is the operator CLI: schedule previews and AI advice from the terminal.
package main

import (
	"context"
	"os"

	"github.com/innovators/mlms/mlms-backend/internal/ai"
	"github.com/innovators/mlms/mlms-backend/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// generatorFactory builds the text generator; nil means no credential is configured
type generatorFactory func(ctx context.Context, cfg config.AIConfig) (ai.TextGenerator, error)

func geminiFactory(ctx context.Context, cfg config.AIConfig) (ai.TextGenerator, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	gen, err := ai.NewGeminiGenerator(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		return nil, err
	}
	return gen, nil
}

func newRootCmd(newGenerator generatorFactory) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "mlmsctl",
		Short:         "Microfinance loan management tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level)
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(newScheduleCmd())
	root.AddCommand(newExplainRiskCmd(newGenerator))
	root.AddCommand(newSuggestCmd(newGenerator))
	return root
}

func main() {
	if err := newRootCmd(geminiFactory).Execute(); err != nil {
		log.Error().Err(err).Msg("mlmsctl failed")
		os.Exit(1)
	}
}
