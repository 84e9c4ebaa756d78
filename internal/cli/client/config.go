package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

const configFileName = "config.json"

// GlobalConfig is the persisted CLI state. Only the server address is kept;
// everything else is passed per command.
type GlobalConfig struct {
	APIURL string `json:"api_url"`
}

var (
	getConfigDirFunc  = defaultGetConfigDir
	getConfigPathFunc = defaultGetConfigPath
)

func defaultGetConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config directory: %w", err)
	}
	return filepath.Join(base, "citedoc"), nil
}

func defaultGetConfigPath() (string, error) {
	dir, err := getConfigDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func GetConfigDir() (string, error) {
	return getConfigDirFunc()
}

func GetConfigPath() (string, error) {
	return getConfigPathFunc()
}

// LoadGlobalConfig returns nil without error when nothing has been saved yet.
func LoadGlobalConfig() (*GlobalConfig, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg GlobalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// SaveGlobalConfig replaces the config file through a rename so a crashed
// write never leaves a truncated file behind.
func SaveGlobalConfig(cfg *GlobalConfig) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}

	dir, err := GetConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, configFileName+".*")
	if err != nil {
		return fmt.Errorf("stage config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("stage config: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("stage config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stage config: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// DeleteGlobalConfig is a no-op when no config exists.
func DeleteGlobalConfig() error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// IsValidAPIURL accepts absolute http(s) URLs with a host.
func IsValidAPIURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// URLSource names the layer that supplied the API base URL.
type URLSource string

const (
	SourceFlag         URLSource = "flag"
	SourceEnv          URLSource = "env"
	SourceGlobalConfig URLSource = "global_config"
	SourceDefault      URLSource = "default"
)

// ResolveAPIURL picks the base URL from, in order, the --api-url flag, the
// CITEDOC_API_URL environment variable, the saved config and the default.
func ResolveAPIURL(flagURL string) (URLSource, string, error) {
	if flagURL != "" {
		return SourceFlag, normalizeURL(flagURL), nil
	}
	if env := os.Getenv(envAPIURL); env != "" {
		return SourceEnv, normalizeURL(env), nil
	}

	cfg, err := LoadGlobalConfig()
	if err != nil {
		return SourceDefault, "", err
	}
	if cfg != nil && cfg.APIURL != "" {
		return SourceGlobalConfig, normalizeURL(cfg.APIURL), nil
	}
	return SourceDefault, defaultAPIURL, nil
}

func normalizeURL(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}
