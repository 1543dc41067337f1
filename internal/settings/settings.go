// Package settings keeps the user's local preferences. Non-secret values live in a YAML
// file; API keys live in a keyring vault.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/99designs/keyring"
	"github.com/spf13/viper"

	"sitegen-backend/internal/config"
	"sitegen-backend/pkg/logger"
)

const (
	serviceName = "sitegen"

	credentialPrefix = "provider:"
	backendKeyItem   = "backend:anon_key"
)

var (
	ErrInvalidTheme    = errors.New("theme must be 'light', 'dark', or 'system'")
	ErrInvalidProvider = errors.New("provider is required")
	ErrEmptyCredential = errors.New("API key is empty")
)

type Settings struct {
	Provider   string `mapstructure:"provider"`
	BackendURL string `mapstructure:"backend_url"`
	Theme      string `mapstructure:"theme"`
}

type Service struct {
	mu       sync.RWMutex
	path     string
	ring     keyring.Keyring
	defaults Settings
	current  Settings
	loaded   bool
}

// Open builds the service from configuration. An unavailable vault is replaced by an
// in-memory one so credentials still work for the life of the process.
func Open(cfg config.SettingsConfig, defaultProvider string) *Service {
	ring, err := openVault(cfg)
	if err != nil {
		logger.Warnf("Credential vault unavailable, keeping keys in memory: %v", err)
		ring = keyring.NewArrayKeyring(nil)
	}
	return New(cfg.Path, ring, Settings{Provider: defaultProvider, Theme: "system"})
}

// New loads the settings file at path. A missing or unreadable file leaves defaults
// in place.
func New(path string, ring keyring.Keyring, defaults Settings) *Service {
	s := &Service{
		path:     path,
		ring:     ring,
		defaults: defaults,
		current:  defaults,
	}
	s.load()
	return s
}

func openVault(cfg config.SettingsConfig) (keyring.Keyring, error) {
	switch cfg.VaultBackend {
	case "memory":
		return keyring.NewArrayKeyring(nil), nil
	case "system":
		return keyring.Open(keyring.Config{ServiceName: serviceName})
	default:
		if err := os.MkdirAll(cfg.VaultDir, 0700); err != nil {
			return nil, err
		}
		return keyring.Open(keyring.Config{
			ServiceName:      serviceName,
			AllowedBackends:  []keyring.BackendType{keyring.FileBackend},
			FileDir:          cfg.VaultDir,
			FilePasswordFunc: keyring.FixedStringPrompt(cfg.VaultPass),
		})
	}
}

func (s *Service) newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	v.SetDefault("provider", s.defaults.Provider)
	v.SetDefault("backend_url", s.defaults.BackendURL)
	v.SetDefault("theme", s.defaults.Theme)
	return v
}

func (s *Service) load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.newViper()
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("Failed to read settings %s, using defaults: %v", s.path, err)
		}
		return
	}

	var loaded Settings
	if err := v.Unmarshal(&loaded); err != nil {
		logger.Warnf("Failed to decode settings %s, using defaults: %v", s.path, err)
		return
	}
	if !validTheme(loaded.Theme) {
		logger.Warnf("Ignoring unknown theme %q in %s", loaded.Theme, s.path)
		loaded.Theme = s.defaults.Theme
	}

	s.current = loaded
	s.loaded = true
}

// Get returns the current settings and whether they came from the settings file.
func (s *Service) Get() (Settings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.loaded
}

// Update validates and persists new settings. backendKey nil leaves the stored key
// alone; an empty string removes it.
func (s *Service) Update(next Settings, backendKey *string) (Settings, error) {
	next.Provider = strings.TrimSpace(next.Provider)
	next.BackendURL = strings.TrimSpace(next.BackendURL)
	if next.Provider == "" {
		return Settings{}, ErrInvalidProvider
	}
	if !validTheme(next.Theme) {
		return Settings{}, ErrInvalidTheme
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.newViper()
	v.Set("provider", next.Provider)
	v.Set("backend_url", next.BackendURL)
	v.Set("theme", next.Theme)

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return Settings{}, fmt.Errorf("failed to create settings dir: %w", err)
	}
	if err := v.WriteConfigAs(s.path); err != nil {
		return Settings{}, fmt.Errorf("failed to write settings: %w", err)
	}

	if backendKey != nil {
		if err := s.storeSecret(backendKeyItem, *backendKey, "Backend anon key"); err != nil {
			return Settings{}, err
		}
	}

	s.current = next
	s.loaded = true
	return next, nil
}

func (s *Service) SetCredential(provider, apiKey string) error {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return ErrInvalidProvider
	}
	if strings.TrimSpace(apiKey) == "" {
		return ErrEmptyCredential
	}
	return s.storeSecret(credentialPrefix+provider, strings.TrimSpace(apiKey), provider+" API key")
}

func (s *Service) DeleteCredential(provider string) error {
	if provider == "" {
		return ErrInvalidProvider
	}
	return s.removeSecret(credentialPrefix + provider)
}

// Credential returns the stored key for provider. A vault read error is logged and
// treated as no key.
func (s *Service) Credential(provider string) (string, bool) {
	return s.secret(credentialPrefix + provider)
}

func (s *Service) HasCredential(provider string) bool {
	_, ok := s.Credential(provider)
	return ok
}

// Credentials reports which of ids have a stored key.
func (s *Service) Credentials(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = s.HasCredential(id)
	}
	return out
}

// StoredProviders lists providers with a key in the vault.
func (s *Service) StoredProviders() []string {
	keys, err := s.ring.Keys()
	if err != nil {
		logger.Warnf("Failed to list vault keys: %v", err)
		return nil
	}

	var out []string
	for _, k := range keys {
		if id, ok := strings.CutPrefix(k, credentialPrefix); ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Service) HasBackendKey() bool {
	_, ok := s.secret(backendKeyItem)
	return ok
}

// Auxiliary returns the backend values handed to providers as prompt placeholders.
func (s *Service) Auxiliary() map[string]string {
	current, _ := s.Get()

	aux := map[string]string{}
	if current.BackendURL != "" {
		aux["supabase_url"] = current.BackendURL
	}
	if key, ok := s.secret(backendKeyItem); ok {
		aux["supabase_anon_key"] = key
	}
	return aux
}

func (s *Service) secret(key string) (string, bool) {
	item, err := s.ring.Get(key)
	if err != nil {
		if !errors.Is(err, keyring.ErrKeyNotFound) {
			logger.Warnf("Failed to read %s from vault: %v", key, err)
		}
		return "", false
	}
	if len(item.Data) == 0 {
		return "", false
	}
	return string(item.Data), true
}

func (s *Service) storeSecret(key, value, label string) error {
	if value == "" {
		return s.removeSecret(key)
	}
	err := s.ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       label,
		Description: label + " used by sitegen",
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", label, err)
	}
	return nil
}

func (s *Service) removeSecret(key string) error {
	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

func validTheme(theme string) bool {
	return theme == "light" || theme == "dark" || theme == "system"
}
