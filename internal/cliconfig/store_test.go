package cliconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := &CLIConfig{}
	require.NoError(t, cfg.SetCredential("https://addon.example.com:8443/", &Credential{Token: "t0k3n", Subject: "ops"}))
	require.NoError(t, Save(cfg))

	loaded, err := Load()
	require.NoError(t, err)

	cred, err := loaded.GetCredential("https://addon.example.com:8443")
	require.NoError(t, err)
	assert.Equal(t, "t0k3n", cred.Token)
	assert.Equal(t, "ops", cred.Subject)

	_, err = loaded.GetCredential("https://other.example.com")
	assert.ErrorIs(t, err, ErrCredentialNotFound)
}

func TestSetCredential_RequiresHost(t *testing.T) {
	cfg := &CLIConfig{}
	assert.Error(t, cfg.SetCredential("not-a-url", &Credential{Token: "x"}))
}
