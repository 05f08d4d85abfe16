package registry

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderValidation(t *testing.T) {
	l := NewLoader(testLogger())

	t.Run("rejects relative paths", func(t *testing.T) {
		_, err := l.validateBinaryPath("plugins/ocr")
		assert.ErrorContains(t, err, "absolute")
	})

	t.Run("rejects shell metacharacters", func(t *testing.T) {
		_, err := l.validateBinaryPath("/opt/ocr;rm -rf")
		assert.ErrorContains(t, err, "forbidden")
	})

	t.Run("rejects empty paths", func(t *testing.T) {
		_, err := l.validateBinaryPath("")
		assert.Error(t, err)
	})

	t.Run("Load fails for a missing binary", func(t *testing.T) {
		_, err := l.Load(context.Background(), sdk.Descriptor{
			Name:    "ghost",
			Options: sdk.Options{"binary": filepath.Join(t.TempDir(), "ghost")},
		})
		assert.ErrorContains(t, err, "binary not found")
	})
}

func TestLoaderChecksum(t *testing.T) {
	l := NewLoader(nil)
	path := filepath.Join(t.TempDir(), "plugin")
	content := []byte("#!/bin/sh\necho hi\n")
	require.NoError(t, os.WriteFile(path, content, 0o700))
	sum := sha256.Sum256(content)
	good := hex.EncodeToString(sum[:])

	assert.NoError(t, l.verifyChecksum(path, good))
	assert.NoError(t, l.verifyChecksum(path, "sha256:"+good))
	assert.ErrorContains(t, l.verifyChecksum(path, "sha256:deadbeef"), "mismatch")
	assert.ErrorContains(t, l.verifyChecksum(path, "md5:abc"), "unsupported")
}

func TestHclogAdapter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	adapter := newHclogAdapter(logger)

	adapter.Debug("hidden")
	adapter.Named("sidecar").Warn("plugin exited", "code", 1)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "plugin exited")
	assert.Contains(t, out, "plugin=multiocr.sidecar")
	assert.False(t, adapter.IsDebug())
	assert.True(t, adapter.IsWarn())
	assert.Equal(t, hclog.Info, adapter.GetLevel())
}
