package cli

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trivia-bot-service/internal/config"
	"trivia-bot-service/internal/generator"
)

// NewAskCmd generates a single question and prints it, useful for checking
// provider configuration without standing up the server.
func NewAskCmd(configPath *string) *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Generate one question and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()

			payload := generator.FromConfig(cfg, logger).Generate(cmd.Context(), topic)
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(payload)
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "topic hint, random when empty")
	return cmd
}
