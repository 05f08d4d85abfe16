package registry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/multiocr/internal/engine/grpc"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

// PluginOptionsEnv carries the engine options, JSON-encoded, to a plugin process.
const PluginOptionsEnv = "MULTIOCR_ENGINE_OPTIONS"

// Loader launches recognizer plugins using HashiCorp go-plugin.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new plugin loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load starts the plugin binary named by the descriptor's "binary" option and
// returns an engine backed by it. Closing the engine kills the plugin process.
func (l *Loader) Load(ctx context.Context, desc sdk.Descriptor) (sdk.Engine, error) {
	binaryPath := desc.Options.GetString("binary", "")

	sanitizedPath, err := l.validateBinaryPath(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: binary path validation failed: %w", binaryPath, err)
	}

	info, err := os.Stat(sanitizedPath)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: binary not found: %w", sanitizedPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("plugin %s: binary path is not a regular file", sanitizedPath)
	}

	if checksum := desc.Options.GetString("checksum", ""); checksum != "" {
		if err := l.verifyChecksum(sanitizedPath, checksum); err != nil {
			return nil, fmt.Errorf("plugin %s: %w", sanitizedPath, err)
		}
	}

	optionsJSON, err := json.Marshal(desc.Options)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: encode options: %w", sanitizedPath, err)
	}

	l.logger.Info("loading plugin",
		"engine", desc.Name,
		"binary", sanitizedPath,
	)

	// #nosec G204 -- binary path is validated by validateBinaryPath
	cmd := exec.Command(sanitizedPath)
	cmd.Env = append(os.Environ(), PluginOptionsEnv+"="+string(optionsJSON))

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: grpc.HandshakeConfig,
		Plugins:         grpc.PluginMap(nil),
		Cmd:             cmd,
		Logger:          newHclogAdapter(l.logger),
		AllowedProtocols: []plugin.Protocol{
			plugin.ProtocolGRPC,
		},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("plugin %s: failed to connect: %w", sanitizedPath, err)
	}

	raw, err := rpcClient.Dispense(grpc.PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("plugin %s: failed to dispense: %w", sanitizedPath, err)
	}

	recognizer, ok := raw.(grpc.Recognizer)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin %s: does not implement the recognizer service", sanitizedPath)
	}

	engine, err := grpc.NewRemoteEngine(ctx, desc, recognizer, func() error {
		client.Kill()
		return nil
	}, l.logger)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("plugin %s: %w", sanitizedPath, err)
	}

	l.logger.Info("plugin loaded",
		"engine", engine.Name(),
		"version", engine.Version(),
	)

	return engine, nil
}

// validateBinaryPath validates and sanitizes a binary path to prevent command injection.
func (l *Loader) validateBinaryPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("binary path cannot be empty")
	}

	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return "", fmt.Errorf("binary path must be absolute: %s", path)
	}

	for _, char := range []string{";", "&", "|", "$", "`", "<", ">", "!", "\n", "\r", "'", "\""} {
		if strings.Contains(cleanPath, char) {
			return "", fmt.Errorf("binary path contains forbidden character %q: %s", char, path)
		}
	}

	resolvedPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cleanPath, nil
		}
		return "", fmt.Errorf("failed to resolve binary path: %w", err)
	}
	return resolvedPath, nil
}

// verifyChecksum verifies the SHA256 checksum of a file.
// Expected format: "sha256:HEXHASH" or just "HEXHASH".
func (l *Loader) verifyChecksum(path, expected string) error {
	algorithm, hash := "sha256", expected
	if before, after, found := strings.Cut(expected, ":"); found {
		algorithm, hash = strings.ToLower(before), after
	}
	if algorithm != "sha256" {
		return fmt.Errorf("unsupported checksum algorithm: %s", algorithm)
	}

	// #nosec G304 -- path is validated by validateBinaryPath
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if computed := hex.EncodeToString(hasher.Sum(nil)); !strings.EqualFold(computed, hash) {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", hash, computed)
	}
	return nil
}

// hclogAdapter routes go-plugin's hclog output into slog.
type hclogAdapter struct {
	logger *slog.Logger
	name   string
}

func newHclogAdapter(logger *slog.Logger) *hclogAdapter {
	return &hclogAdapter{logger: logger.With("component", "plugin"), name: "multiocr"}
}

var hclogLevels = map[hclog.Level]slog.Level{
	hclog.Trace: slog.LevelDebug - 4,
	hclog.Debug: slog.LevelDebug,
	hclog.Info:  slog.LevelInfo,
	hclog.Warn:  slog.LevelWarn,
	hclog.Error: slog.LevelError,
}

func toSlogLevel(level hclog.Level) slog.Level {
	if l, ok := hclogLevels[level]; ok {
		return l
	}
	return slog.LevelDebug
}

func (h *hclogAdapter) Log(level hclog.Level, msg string, args ...interface{}) {
	h.logger.Log(context.Background(), toSlogLevel(level), msg, append(args, "plugin", h.name)...)
}

func (h *hclogAdapter) Trace(msg string, args ...interface{}) { h.Log(hclog.Trace, msg, args...) }
func (h *hclogAdapter) Debug(msg string, args ...interface{}) { h.Log(hclog.Debug, msg, args...) }
func (h *hclogAdapter) Info(msg string, args ...interface{})  { h.Log(hclog.Info, msg, args...) }
func (h *hclogAdapter) Warn(msg string, args ...interface{})  { h.Log(hclog.Warn, msg, args...) }
func (h *hclogAdapter) Error(msg string, args ...interface{}) { h.Log(hclog.Error, msg, args...) }

func (h *hclogAdapter) enabled(level hclog.Level) bool {
	return h.logger.Enabled(context.Background(), toSlogLevel(level))
}

func (h *hclogAdapter) IsTrace() bool { return h.enabled(hclog.Trace) }
func (h *hclogAdapter) IsDebug() bool { return h.enabled(hclog.Debug) }
func (h *hclogAdapter) IsInfo() bool  { return h.enabled(hclog.Info) }
func (h *hclogAdapter) IsWarn() bool  { return h.enabled(hclog.Warn) }
func (h *hclogAdapter) IsError() bool { return h.enabled(hclog.Error) }

func (h *hclogAdapter) ImpliedArgs() []interface{} { return nil }

func (h *hclogAdapter) With(args ...interface{}) hclog.Logger {
	return &hclogAdapter{logger: h.logger.With(args...), name: h.name}
}

func (h *hclogAdapter) Name() string { return h.name }

func (h *hclogAdapter) Named(name string) hclog.Logger {
	return &hclogAdapter{logger: h.logger, name: h.name + "." + name}
}

func (h *hclogAdapter) ResetNamed(name string) hclog.Logger {
	return &hclogAdapter{logger: h.logger, name: name}
}

func (h *hclogAdapter) SetLevel(hclog.Level) {}

func (h *hclogAdapter) GetLevel() hclog.Level {
	for _, level := range []hclog.Level{hclog.Trace, hclog.Debug, hclog.Info, hclog.Warn} {
		if h.enabled(level) {
			return level
		}
	}
	return hclog.Error
}

func (h *hclogAdapter) StandardLogger(*hclog.StandardLoggerOptions) *log.Logger {
	return slog.NewLogLogger(h.logger.Handler(), slog.LevelInfo)
}

func (h *hclogAdapter) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return h.StandardLogger(opts).Writer()
}
