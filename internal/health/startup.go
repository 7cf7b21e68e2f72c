// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ManuGH/reftabs/internal/config"
	xglog "github.com/ManuGH/reftabs/internal/log"
)

// PerformStartupChecks validates the environment before the server starts.
// The data directory is created when missing.
func PerformStartupChecks(_ context.Context, cfg config.AppConfig) error {
	logger := xglog.WithComponent("startup-check")

	if err := checkDataDir(logger, cfg.DataDir); err != nil {
		return fmt.Errorf("data directory check failed: %w", err)
	}
	for _, p := range []string{cfg.DatabasePath, cfg.DisplaysPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
			return fmt.Errorf("ensure parent of %s: %w", p, err)
		}
	}
	if cfg.SeedPath != "" {
		if err := checkFileReadable(cfg.SeedPath); err != nil {
			return fmt.Errorf("seed file: %w", err)
		}
	}

	tempDir := filepath.Clean(os.TempDir())
	dataDir := filepath.Clean(cfg.DataDir)
	if tempDir != "." && (dataDir == tempDir || strings.HasPrefix(dataDir, tempDir+string(filepath.Separator))) {
		logger.Warn().
			Str(xglog.FieldEvent, "startup.data_dir_temp").
			Str("data_dir", cfg.DataDir).
			Msg("data directory is under temp; content may be lost on reboot")
	}

	logger.Info().Str(xglog.FieldEvent, "startup.checked").Msg("startup checks passed")
	return nil
}

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

	logger.Debug().Str(xglog.FieldPath, path).Msg("data directory is writable")
	return nil
}

func checkFileReadable(path string) error {
	f, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		return err
	}
	return f.Close()
}
