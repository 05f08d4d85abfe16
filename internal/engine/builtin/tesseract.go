// Package builtin provides the OCR engines that ship with multiocr and
// registers their factories with the default registry.
package builtin

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/multiocr/internal/engine/registry"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
)

func init() {
	registry.RegisterFactory(registry.TypeTesseract, func(ctx context.Context, desc sdk.Descriptor, logger *slog.Logger) (sdk.Engine, error) {
		return NewTesseractEngine(ctx, desc, logger)
	})
}

const (
	tesseractName    = "Tesseract"
	defaultLang      = "eng"
	defaultPSM       = 1
	versionTimeout   = 10 * time.Second
	defaultTesseract = "tesseract"
)

// TesseractFileTypes are the extensions the tesseract engines accept by default.
var TesseractFileTypes = []string{".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".gif"}

// TesseractEngine recognizes documents by running the tesseract binary.
//
// Options: binary (default "tesseract"), lang (default "eng"), psm
// (default 1), config (extra arguments, space separated).
type TesseractEngine struct {
	sdk.Base
	runner  commandRunner
	binary  string
	initErr error
	logger  *slog.Logger
}

var _ sdk.Engine = (*TesseractEngine)(nil)

// TesseractOption customizes a TesseractEngine.
type TesseractOption func(*TesseractEngine)

func withRunner(r commandRunner) TesseractOption {
	return func(e *TesseractEngine) { e.runner = r }
}

// NewTesseractEngine creates the engine and checks the binary version. A
// failed check is recorded in the health window and kept as InitErr; the
// engine is still returned.
func NewTesseractEngine(ctx context.Context, desc sdk.Descriptor, logger *slog.Logger, opts ...TesseractOption) (*TesseractEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if desc.Name == "" {
		desc.Name = tesseractName
	}
	if len(desc.FileTypes) == 0 {
		desc.FileTypes = TesseractFileTypes
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	e := &TesseractEngine{
		Base:   sdk.NewBase(desc),
		runner: execRunner{},
		binary: desc.Options.GetString("binary", defaultTesseract),
		logger: logger.With("engine", desc.Name),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.initialize(ctx)
	return e, nil
}

func (e *TesseractEngine) initialize(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()

	res, err := e.runner.Run(ctx, e.binary, "--version")
	if err != nil {
		e.initErr = sdk.CriticalFailure(fmt.Sprintf("Failed to initialize %s: %v", e.Name(), err), err)
		e.logger.Error("engine initialization failed", "error", e.initErr)
		e.RecordOutcome(false)
		return
	}

	// Older builds print the banner on stderr.
	if v := parseTesseractVersion(res.Stdout + "\n" + res.Stderr); v != "" {
		e.SetVersion(v)
	}
	e.logger.Debug("engine initialized", "version", e.Version())
	e.RecordOutcome(true)
}

// InitErr returns the initialization failure, if any.
func (e *TesseractEngine) InitErr() error {
	return e.initErr
}

// PrepareFile validates the document.
func (e *TesseractEngine) PrepareFile(_ context.Context, path string) (*sdk.PreparedFile, error) {
	return e.Validate(path)
}

// ProcessFile runs tesseract and captures its text output.
func (e *TesseractEngine) ProcessFile(ctx context.Context, prepared *sdk.PreparedFile) (*sdk.RawResult, error) {
	started := time.Now()
	res, err := e.runner.Run(ctx, e.binary, e.args(prepared.Path)...)
	if err != nil {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = err.Error()
		}
		return nil, sdk.EngineFailure(fmt.Sprintf("%s processing failed: %s", e.Name(), detail), err)
	}
	return &sdk.RawResult{
		Prepared:  prepared,
		Output:    []byte(res.Stdout),
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

// ParseResults wraps the text in a single-page result. The CLI reports no
// confidence.
func (e *TesseractEngine) ParseResults(_ context.Context, raw *sdk.RawResult) (*sdk.Result, error) {
	text := string(raw.Output)
	return &sdk.Result{
		Text:     text,
		Pages:    []sdk.Page{{PageNumber: 1, Text: text}},
		Metadata: e.ResultMetadata(raw.Duration, e.lang()),
	}, nil
}

func (e *TesseractEngine) lang() string {
	return e.Options().GetString("lang", defaultLang)
}

func (e *TesseractEngine) args(path string) []string {
	opts := e.Options()
	args := []string{path, "stdout", "-l", e.lang(), "--psm", strconv.Itoa(opts.GetInt("psm", defaultPSM))}
	if extra := opts.GetString("config", ""); extra != "" {
		args = append(args, strings.Fields(extra)...)
	}
	return args
}

// parseTesseractVersion extracts "5.3.0" from a "tesseract 5.3.0" banner.
func parseTesseractVersion(out string) string {
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && strings.EqualFold(fields[0], "tesseract") {
			return strings.TrimPrefix(fields[1], "v")
		}
	}
	return ""
}
