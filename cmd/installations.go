package cmd

import (
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var installationsCmd = &cobra.Command{
	Use:     "installations",
	Aliases: []string{"inst"},
	Short:   "Inspect the installations of a running server",
	Long:    `Requires an admin token (mortimmy login).`,
}

var installationsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installations and the state of their credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Msg("Retrieving installations...")
		installations, correlation, err := cli.ListInstallations(cmd.Context())
		if err != nil {
			return logError(err, correlation, "listing installations failed")
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"OAuth ID", "Scope", "Installed", "Credential", "Status"})

		for _, inst := range installations {
			scope := "group " + strconv.FormatInt(inst.GroupID, 10)
			if inst.RoomID != 0 {
				scope = "room " + strconv.FormatInt(inst.RoomID, 10)
			}

			credential := faint("(none)")
			if inst.HasCredential {
				credential = "expires " + until(inst.CredentialExpiresAt)
			}

			status := greenCheck + " active"
			if inst.Disabled {
				status = redCross + " " + color.RedString(truncate(inst.DisabledReason, 50))
			}

			t.AppendRow(table.Row{
				color.New(color.Bold).Sprint(inst.OAuthID),
				scope,
				since(inst.InstalledAt),
				credential,
				status,
			})
		}

		applyTableFormat(t)
		t.Render()
		log.Info().Msgf("%d installation(s)", len(installations))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installationsCmd)
	installationsCmd.AddCommand(installationsListCmd)
}
