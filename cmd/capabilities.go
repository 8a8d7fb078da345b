package cmd

import (
	"encoding/json"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bollustrado/mortimmy/internal/core"
)

var capabilitiesCmd = &cobra.Command{
	Use:     "capabilities",
	Aliases: []string{"caps", "descriptor"},
	Short:   "Print the capabilities descriptor",
	Long: `Prints the descriptor the host fetches from /capabilities. Built from the local
configuration, or fetched from a running server when --server is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var desc *core.Descriptor
		if f.RemoteAddr != "" {
			cli, err := f.GetClient()
			if err != nil {
				return err
			}
			remote, correlation, err := cli.Capabilities(cmd.Context())
			if err != nil {
				return logError(err, correlation, "failed to fetch capabilities")
			}
			desc = remote
		} else {
			cfg, err := f.LoadConfig()
			if err != nil {
				return err
			}
			a, err := buildAddon(cfg, true)
			if err != nil {
				return err
			}
			local := a.controller.Capabilities()
			desc = &local
		}

		log.Debug().Int("webhooks", len(desc.Capabilities.Webhook)).Msg("rendering descriptor")
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(desc)
	},
}

func init() {
	rootCmd.AddCommand(capabilitiesCmd)
	f.bindConfigFlag(capabilitiesCmd.Flags())
}
