package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen-backend/internal/config"
)

func newService(t *testing.T) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	return New(path, keyring.NewArrayKeyring(nil), Settings{Provider: "gemini", Theme: "system"}), path
}

func TestDefaultsWhenFileMissing(t *testing.T) {
	svc, _ := newService(t)

	got, loaded := svc.Get()
	assert.False(t, loaded)
	assert.Equal(t, "gemini", got.Provider)
	assert.Equal(t, "system", got.Theme)
}

func TestCorruptFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: [unterminated\n\t- :"), 0644))

	svc := New(path, keyring.NewArrayKeyring(nil), Settings{Provider: "gemini", Theme: "system"})
	got, loaded := svc.Get()
	assert.False(t, loaded)
	assert.Equal(t, "gemini", got.Provider)
}

func TestUpdatePersists(t *testing.T) {
	svc, path := newService(t)
	ring := svc.ring

	key := "anon-123"
	_, err := svc.Update(Settings{Provider: "anthropic", BackendURL: "https://x.supabase.co", Theme: "dark"}, &key)
	require.NoError(t, err)

	reopened := New(path, ring, Settings{Provider: "gemini", Theme: "system"})
	got, loaded := reopened.Get()
	assert.True(t, loaded)
	assert.Equal(t, Settings{Provider: "anthropic", BackendURL: "https://x.supabase.co", Theme: "dark"}, got)
	assert.True(t, reopened.HasBackendKey())
	assert.Equal(t, map[string]string{
		"supabase_url":      "https://x.supabase.co",
		"supabase_anon_key": "anon-123",
	}, reopened.Auxiliary())

	empty := ""
	_, err = reopened.Update(got, &empty)
	require.NoError(t, err)
	assert.False(t, reopened.HasBackendKey())
}

func TestUpdateValidates(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.Update(Settings{Provider: "gemini", Theme: "neon"}, nil)
	assert.ErrorIs(t, err, ErrInvalidTheme)

	_, err = svc.Update(Settings{Provider: " ", Theme: "dark"}, nil)
	assert.ErrorIs(t, err, ErrInvalidProvider)

	got, _ := svc.Get()
	assert.Equal(t, "system", got.Theme)
}

func TestCredentials(t *testing.T) {
	svc, _ := newService(t)

	_, ok := svc.Credential("openai")
	assert.False(t, ok)
	assert.ErrorIs(t, svc.SetCredential("openai", "  "), ErrEmptyCredential)

	require.NoError(t, svc.SetCredential("openai", " sk-test "))
	key, ok := svc.Credential("openai")
	require.True(t, ok)
	assert.Equal(t, "sk-test", key)
	assert.Equal(t, []string{"openai"}, svc.StoredProviders())
	assert.Equal(t, map[string]bool{"openai": true, "gemini": false}, svc.Credentials([]string{"openai", "gemini"}))

	require.NoError(t, svc.DeleteCredential("openai"))
	assert.False(t, svc.HasCredential("openai"))
	require.NoError(t, svc.DeleteCredential("openai"))
}

func TestOpenFileVault(t *testing.T) {
	dir := t.TempDir()
	cfg := config.SettingsConfig{
		Path:         filepath.Join(dir, "settings.yaml"),
		VaultDir:     filepath.Join(dir, "vault"),
		VaultBackend: "file",
		VaultPass:    "test",
	}

	svc := Open(cfg, "gemini")
	require.NoError(t, svc.SetCredential("gemini", "g-key"))

	again := Open(cfg, "gemini")
	key, ok := again.Credential("gemini")
	require.True(t, ok)
	assert.Equal(t, "g-key", key)
}
