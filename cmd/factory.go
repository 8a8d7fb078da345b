package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bollustrado/mortimmy/internal/cliconfig"
	"github.com/bollustrado/mortimmy/internal/config"
	"github.com/bollustrado/mortimmy/pkg/client"
)

const DefaultConfigPath = "mortimmy.yaml"

type Factory struct {
	// RemoteAddr is the address of the Mortimmy server to connect to.
	RemoteAddr string

	// ConfigPath is the add-on configuration used by local commands.
	ConfigPath string
}

func NewFactory() *Factory {
	return &Factory{}
}

// GetClient returns an authenticated client for the admin API.
func (f *Factory) GetClient() (*client.Client, error) {
	server := f.RemoteAddr // prio 1: command-line flag
	if server == "" {
		server = viper.GetString(ServerAddrKey) // prio 2: config/env
	}
	if server == "" {
		return nil, fmt.Errorf("server address not configured (use --server or set MORTIMMY_SERVER)")
	}

	var token string
	if cfg, err := cliconfig.Load(); err == nil {
		cred, err := cfg.GetCredential(server)
		switch {
		case err == nil: // token prio 1: saved credential
			token = cred.Token
		case !errors.Is(err, cliconfig.ErrCredentialNotFound):
			return nil, err
		}
	}

	if envToken := viper.GetString(AdminTokenKey); envToken != "" { // token prio 2: env var
		token = envToken
	}

	return client.New(server, client.WithAuthToken(token)), nil
}

// LoadConfig loads the add-on configuration from --config.
func (f *Factory) LoadConfig() (*config.Config, error) {
	path := f.ConfigPath
	if path == "" {
		path = viper.GetString(ConfigPathKey)
	}
	if path == "" {
		path = DefaultConfigPath
	}
	return config.Load(path)
}

func (f *Factory) bindConfigFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&f.ConfigPath, "config", "c", "", "The add-on config file to use (default is ./"+DefaultConfigPath+")")
}
