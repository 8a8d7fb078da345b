package cmd

import (
	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Inspect and trigger background tasks",
	Long:  `List the server's background tasks (like the credential refresher), trigger them and read their logs. Requires an admin token (mortimmy login).`,
}

func init() {
	rootCmd.AddCommand(tasksCmd)
}
