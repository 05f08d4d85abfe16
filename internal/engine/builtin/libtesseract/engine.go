//go:build cgo && libtesseract

package libtesseract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/felixgeelhaar/multiocr/internal/engine/builtin"
	"github.com/felixgeelhaar/multiocr/internal/engine/registry"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
)

func init() {
	registry.RegisterFactory(registry.TypeLibTesseract, func(_ context.Context, desc sdk.Descriptor, logger *slog.Logger) (sdk.Engine, error) {
		return New(desc, logger)
	})
}

// words carries the per-word output of one recognition.
type words struct {
	text        string
	confidences []float64
}

// Engine wraps a gosseract client. A client is created per document
// because clients are not safe for concurrent use.
type Engine struct {
	sdk.Base
	logger *slog.Logger
}

var _ sdk.Engine = (*Engine)(nil)

// New creates the engine and records the library version as its
// initialization outcome.
func New(desc sdk.Descriptor, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if desc.Name == "" {
		desc.Name = "LibTesseract"
	}
	if len(desc.FileTypes) == 0 {
		desc.FileTypes = builtin.TesseractFileTypes
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{Base: sdk.NewBase(desc), logger: logger.With("engine", desc.Name)}
	version := gosseract.Version()
	if version == "" {
		e.logger.Error("engine initialization failed", "error", "tesseract library unavailable")
		e.RecordOutcome(false)
		return e, nil
	}
	e.SetVersion(version)
	e.RecordOutcome(true)
	return e, nil
}

// PrepareFile validates the document.
func (e *Engine) PrepareFile(_ context.Context, path string) (*sdk.PreparedFile, error) {
	return e.Validate(path)
}

// ProcessFile recognizes the document and collects word confidences.
func (e *Engine) ProcessFile(_ context.Context, prepared *sdk.PreparedFile) (*sdk.RawResult, error) {
	started := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	opts := e.Options()
	if err := client.SetLanguage(opts.GetString("lang", "eng")); err != nil {
		return nil, e.failure(err)
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(opts.GetInt("psm", int(gosseract.PSM_AUTO_OSD)))); err != nil {
		return nil, e.failure(err)
	}
	if err := client.SetImage(prepared.Path); err != nil {
		return nil, e.failure(err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, e.failure(err)
	}
	out := words{text: text}
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		e.logger.Debug("word confidences unavailable", "error", err)
	}
	for _, b := range boxes {
		out.confidences = append(out.confidences, b.Confidence)
	}

	return &sdk.RawResult{
		Prepared:  prepared,
		Data:      out,
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

// ParseResults averages word confidences (0-100) into a 0-1 result confidence.
func (e *Engine) ParseResults(_ context.Context, raw *sdk.RawResult) (*sdk.Result, error) {
	out, ok := raw.Data.(words)
	if !ok {
		return nil, sdk.EngineFailure(fmt.Sprintf("Failed to parse %s results: unexpected payload %T", e.Name(), raw.Data), nil)
	}

	var confidence *float64
	if len(out.confidences) > 0 {
		var sum float64
		for _, c := range out.confidences {
			sum += c
		}
		confidence = sdk.Confidence(sum / float64(len(out.confidences)) / 100)
	}

	return &sdk.Result{
		Text:       out.text,
		Confidence: confidence,
		Pages:      []sdk.Page{{PageNumber: 1, Text: out.text, Confidence: confidence}},
		Metadata:   e.ResultMetadata(raw.Duration, e.Options().GetString("lang", "eng")),
	}, nil
}

func (e *Engine) failure(err error) error {
	return sdk.EngineFailure(fmt.Sprintf("%s processing failed: %v", e.Name(), err), err)
}
