package main

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			setLogLevel(tt.in)
			assert.Equal(t, tt.want, logLevel.Level())
		})
	}
}

func TestRunCmd_Flags(t *testing.T) {
	assert.NotNil(t, runCmd.Flags().Lookup("identity"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	assert.Equal(t, "configs/config.yaml", rootCmd.PersistentFlags().Lookup("config").DefValue)
}
