// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ManuGH/listflow/internal/config"
	"github.com/ManuGH/listflow/internal/log"
)

// PerformStartupChecks validates the environment before any topic is
// provisioned or store opened.
func PerformStartupChecks(_ context.Context, cfg config.Config) error {
	logger := log.WithComponent("startup-check")
	logger.Info().Msg("running pre-flight startup checks")

	if cfg.Store.Backend != config.StoreMemory {
		dir := cfg.Store.Path
		if cfg.Store.Backend == config.StoreSQLite && filepath.Ext(dir) != "" {
			dir = filepath.Dir(dir)
		}
		if err := checkDataDir(logger, dir); err != nil {
			return fmt.Errorf("store directory check failed: %w", err)
		}
	} else {
		logger.Warn().Msg("list store is in memory; it is rebuilt from the change log on every start")
	}

	if err := checkAddresses(logger, cfg); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	logger.Info().Msg("all startup checks passed")
	return nil
}

// checkDataDir creates path if needed and verifies it is a writable
// directory.
func checkDataDir(logger zerolog.Logger, path string) error {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	testFile := filepath.Join(path, ".write_test")
	if err := os.WriteFile(testFile, []byte("ok"), 0o600); err != nil {
		return fmt.Errorf("directory is not writable: %s (error: %v)", path, err)
	}
	_ = os.Remove(testFile)

	logger.Info().Str(log.FieldPath, path).Msg("store directory is writable")
	return nil
}

func checkAddresses(logger zerolog.Logger, cfg config.Config) error {
	if cfg.API.ListenAddr != "" {
		if err := checkHostPort(cfg.API.ListenAddr); err != nil {
			return fmt.Errorf("invalid listen address: %w", err)
		}
	}

	switch cfg.Log.Backend {
	case config.BackendKafka:
		for _, b := range cfg.Log.Brokers {
			if err := checkHostPort(b); err != nil {
				return fmt.Errorf("invalid broker address: %w", err)
			}
		}
	case config.BackendRedis:
		if err := checkHostPort(cfg.Log.RedisAddr); err != nil {
			return fmt.Errorf("invalid redis address: %w", err)
		}
	}

	if cfg.Log.RegistryURL == "" {
		logger.Info().Msg("no schema registry configured; records are plain JSON")
		return nil
	}
	u, err := url.Parse(cfg.Log.RegistryURL)
	if err != nil {
		return fmt.Errorf("invalid schema registry URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("schema registry scheme must be http or https, got: %s", u.Scheme)
	}
	return nil
}

func checkHostPort(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("invalid port %q in %q", port, addr)
	}
	return nil
}
