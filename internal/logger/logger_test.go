package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitialize(t *testing.T) {
	tests := []struct {
		name       string
		jsonOutput bool
		debug      bool
	}{
		{name: "JSON output mode", jsonOutput: true},
		{name: "Console output mode", jsonOutput: false},
		{name: "Console debug mode", jsonOutput: false, debug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Logger = nil
			JSONOutput = false

			err := Initialize(tt.jsonOutput, tt.debug)
			require.NoError(t, err)
			require.NotNil(t, Logger)
			assert.Equal(t, tt.jsonOutput, JSONOutput)

			Logger = zap.NewNop().Sugar()
		})
	}
}

func TestStructuredWrappers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Use(zap.New(core))
	defer func() { Logger = zap.NewNop().Sugar() }()

	Debugw("synthesized operation", "namespace", "Gtk", "operation", "show")
	Infow("generated", "files", 2)
	Warnw("skipped", "reason", "ignored")
	Errorw("failed", "error", "boom")

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "synthesized operation", entries[0].Message)
	assert.Equal(t, "Gtk", entries[0].ContextMap()["namespace"])
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)
}

func TestWrappersWithNilLogger(t *testing.T) {
	Logger = nil
	defer func() { Logger = zap.NewNop().Sugar() }()

	assert.NotPanics(t, func() {
		Infow("message")
		Debugw("message")
		Cleanup()
	})
}
