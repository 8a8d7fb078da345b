package cmd

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bollustrado/mortimmy/internal/api"
	"github.com/bollustrado/mortimmy/internal/hipchat"
)

var notifyReq api.NotifyRequest

var notifyCmd = &cobra.Command{
	Use:   "notify MESSAGE...",
	Short: "Send a room notification on behalf of an installation",
	Long: `Sends MESSAGE into a room using the installation's access token. Without --room
the room the add-on was installed into is used. Requires an admin token (mortimmy login).`,
	Example: `  mortimmy notify --oauth-id 7d1e... "deploy finished"
  mortimmy notify --oauth-id 7d1e... --room 42 --html --color green "<b>deploy</b> finished"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notifyReq.Message = strings.Join(args, " ")
		if notifyReq.OAuthID == "" {
			return fmt.Errorf("--oauth-id is required")
		}

		cli, err := f.GetClient()
		if err != nil {
			return err
		}

		log.Debug().Str("oauth_id", notifyReq.OAuthID).Int64("room", notifyReq.RoomID).Msg("Sending notification...")
		if correlation, err := cli.SendNotification(cmd.Context(), notifyReq); err != nil {
			return logError(err, correlation, "sending notification failed")
		}
		logSuccess("notification sent")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)

	notifyCmd.Flags().StringVar(&notifyReq.OAuthID, "oauth-id", "", "Installation to send as")
	notifyCmd.Flags().Int64Var(&notifyReq.RoomID, "room", 0, "Room to send to (default: the installation's room)")
	notifyCmd.Flags().BoolVar(&notifyReq.HTML, "html", false, "Send the message as HTML")
	notifyCmd.Flags().StringVar(&notifyReq.Color, "color", hipchat.DefaultColor, "Message color (yellow, green, red, purple, gray, random)")
	notifyCmd.Flags().BoolVar(&notifyReq.Notify, "ping", false, "Notify room members")
}
