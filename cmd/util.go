package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	faint = color.New(color.Faint).SprintFunc()

	greenCheck = color.GreenString("✔")
	redCross   = color.RedString("✘")
)

// BeQuietError fails the command after the error was already reported.
type BeQuietError struct{}

func (BeQuietError) Error() string {
	return "command failed"
}

func logSuccess(format string, args ...any) {
	log.Info().Msgf("%s %s", greenCheck, fmt.Sprintf(format, args...))
}

// logError reports err together with the server's correlation id.
func logError(err error, correlation, msg string) error {
	event := log.Error().Err(err)
	if correlation != "" {
		event = event.Str("correlation_id", correlation)
	}
	event.Msgf("%s %s", redCross, msg)
	return BeQuietError{}
}

func applyTableFormat(t table.Writer) {
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.Style().Format.Header = text.FormatDefault
}

func since(ts time.Time) string {
	if ts.IsZero() {
		return "never"
	}
	return time.Since(ts).Round(time.Second).String() + " ago"
}

func until(ts time.Time) string {
	if ts.IsZero() {
		return "n/a"
	}
	d := time.Until(ts).Round(time.Second)
	if d < 0 {
		return color.RedString("expired %s ago", -d)
	}
	return "in " + d.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func bindAdminKeyFlag(cmd *cobra.Command) {
	cmd.Flags().String("admin-key", "", "HMAC key admin API tokens are signed with (or MORTIMMY_ADMIN_KEY)")
}

// adminKeyFrom prefers the --admin-key flag over config and env.
func adminKeyFrom(cmd *cobra.Command) string {
	if key, _ := cmd.Flags().GetString("admin-key"); key != "" {
		return key
	}
	return viper.GetString(AdminKeyKey)
}
