package cmd

import (
	"github.com/spf13/cobra"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Administrative audit commands",
	Long:  `View the audit log of installs, uninstalls and credential refreshes. Requires an admin token (mortimmy login).`,
}

func init() {
	rootCmd.AddCommand(auditCmd)
}
