package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/database64128/dnspod-ddns/internal/jsonhelper"
	"github.com/database64128/dnspod-ddns/service"
	"github.com/joho/godotenv"
	"go.yaml.in/yaml/v3"
)

// tokenEnv overrides the token in the configuration file when set.
const tokenEnv = "DNSPOD_TOKEN"

// loadConfig reads the configuration file at path on top of [service.DefaultConfig].
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
// Unknown fields are rejected in both formats.
func loadConfig(path string) (service.Config, error) {
	cfg := service.DefaultConfig()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		// An empty document overrides nothing.
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("failed to decode %s: %w", path, err)
		}

	default:
		if err := jsonhelper.OpenAndDecodeDisallowUnknownFields(path, &cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// loadEnv loads envPath into the process environment if the file exists,
// then applies the environment overrides to cfg.
func loadEnv(envPath string, cfg *service.Config) error {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}
	if token, ok := os.LookupEnv(tokenEnv); ok && token != "" {
		cfg.Token = token
	}
	return nil
}
