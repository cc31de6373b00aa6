package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/prolog-runtime/machine"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		verbose bool
		want    zapcore.Level
	}{
		{"default", "", false, zapcore.WarnLevel},
		{"configured", "info", false, zapcore.InfoLevel},
		{"verbose wins", "error", true, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := logLevel(machine.Config{LogLevel: tt.level}, tt.verbose)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := logLevel(machine.Config{LogLevel: "loud"}, false)
	assert.ErrorContains(t, err, "log_level")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\nunknown: fail\n"), 0o600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "fail", cfg.Unknown)

	t.Setenv(machine.ConfigEnv, path)
	cfg, err = loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}
