package cmd

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/bollustrado/mortimmy/internal/api/middleware"
	"github.com/bollustrado/mortimmy/internal/cliconfig"
)

var (
	adminTokenSubject string
	adminTokenTTL     time.Duration
	adminTokenSave    bool
)

var adminTokenCmd = &cobra.Command{
	Use:   "admin-token",
	Short: "Mint an admin API token",
	Long: `Signs an admin API token with the admin key the server was started with.
With --save the token is stored for --server and used by later commands.`,
	Example: `  mortimmy debug admin-token --admin-key changeme --ttl 1h
  MORTIMMY_ADMIN_KEY=changeme mortimmy --server http://localhost:6666 debug admin-token --save`,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := adminKeyFrom(cmd)
		if key == "" {
			return fmt.Errorf("admin key not configured (use --admin-key or set MORTIMMY_ADMIN_KEY)")
		}

		token, err := middleware.MintAdminToken([]byte(key), adminTokenSubject, adminTokenTTL)
		if err != nil {
			return fmt.Errorf("signing token: %w", err)
		}
		log.Debug().Str("sub", adminTokenSubject).Dur("ttl", adminTokenTTL).Msg("minted admin token")

		if !adminTokenSave {
			fmt.Println(token)
			return nil
		}

		if f.RemoteAddr == "" {
			return fmt.Errorf("--save needs --server")
		}
		cfg, err := cliconfig.Load()
		if err != nil {
			log.Debug().Err(err).Msg("starting with an empty cli config")
			cfg = &cliconfig.CLIConfig{}
		}
		if err := cfg.SetCredential(f.RemoteAddr, &cliconfig.Credential{Token: token, Subject: adminTokenSubject}); err != nil {
			return err
		}
		if err := cliconfig.Save(cfg); err != nil {
			return logError(err, "", "could not save credentials")
		}
		logSuccess("saved admin token for %s (valid for %s)", bold(f.RemoteAddr), adminTokenTTL)
		return nil
	},
}

func init() {
	debugCmd.AddCommand(adminTokenCmd)

	bindAdminKeyFlag(adminTokenCmd)
	adminTokenCmd.Flags().StringVar(&adminTokenSubject, "sub", "mortimmy-cli", "Subject of the token")
	adminTokenCmd.Flags().DurationVar(&adminTokenTTL, "ttl", 12*time.Hour, "Lifetime of the token")
	adminTokenCmd.Flags().BoolVar(&adminTokenSave, "save", false, "Store the token for --server instead of printing it")
}
