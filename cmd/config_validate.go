package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Loads the configuration and builds every configured webhook handler, glance and
web panel the way serve does, without opening the store or listening.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := f.LoadConfig()
		if err != nil {
			return logError(err, "", "Configuration is invalid.")
		}
		if _, err := buildAddon(cfg, true); err != nil {
			return logError(err, "", "Configuration is invalid.")
		}
		log.Info().
			Int("webhooks", len(cfg.Webhooks)).
			Int("glances", len(cfg.Glances)).
			Int("web_panels", len(cfg.WebPanels)).
			Msgf("%s Configuration is valid.", greenCheck)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}
