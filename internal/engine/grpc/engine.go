package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
)

const describeTimeout = 10 * time.Second

// RemoteEngine runs the OCR pipeline against an out-of-process Recognizer.
// Documents are validated locally and shipped to the recognizer for processing.
type RemoteEngine struct {
	sdk.Base
	recognizer Recognizer
	closer     func() error
	logger     *slog.Logger
}

var _ sdk.Engine = (*RemoteEngine)(nil)

// NewRemoteEngine describes the recognizer and builds an engine around it.
// A failed Describe call is recorded as a failed initialization; the engine is
// still returned so its health reflects the failure.
func NewRemoteEngine(ctx context.Context, desc sdk.Descriptor, recognizer Recognizer, closer func() error, logger *slog.Logger) (*RemoteEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithTimeout(ctx, describeTimeout)
	defer cancel()

	described, err := recognizer.Describe(ctx)
	if err == nil {
		if desc.Name == "" {
			desc.Name = described.Name
		}
		if desc.Version == "" {
			desc.Version = described.Version
		}
		if len(desc.FileTypes) == 0 {
			desc.FileTypes = described.FileTypes
		}
	}
	if vErr := desc.Validate(); vErr != nil {
		if err != nil {
			return nil, fmt.Errorf("describe recognizer: %w", err)
		}
		return nil, vErr
	}

	e := &RemoteEngine{
		Base:       sdk.NewBase(desc),
		recognizer: recognizer,
		closer:     closer,
		logger:     logger.With("engine", desc.Name),
	}
	if err != nil {
		e.logger.Warn("recognizer describe failed", "error", err)
	}
	e.RecordOutcome(err == nil)
	return e, nil
}

// PrepareFile validates the document locally.
func (e *RemoteEngine) PrepareFile(_ context.Context, path string) (*sdk.PreparedFile, error) {
	return e.Validate(path)
}

// ProcessFile sends the document to the recognizer.
func (e *RemoteEngine) ProcessFile(ctx context.Context, prepared *sdk.PreparedFile) (*sdk.RawResult, error) {
	content, err := prepared.Load()
	if err != nil {
		return nil, sdk.EngineFailure(fmt.Sprintf("%s processing failed: %v", e.Name(), err), err)
	}

	started := time.Now()
	resp, err := e.recognizer.Recognize(ctx, &RecognizeRequest{
		FileName: filepath.Base(prepared.Path),
		Ext:      prepared.Ext,
		Content:  content,
		Options:  e.Options(),
	})
	if err != nil {
		return nil, sdk.EngineFailure(fmt.Sprintf("%s processing failed: %v", e.Name(), err), err)
	}

	return &sdk.RawResult{
		Prepared:  prepared,
		Data:      resp,
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

// ParseResults converts the recognizer response into a Result.
func (e *RemoteEngine) ParseResults(_ context.Context, raw *sdk.RawResult) (*sdk.Result, error) {
	resp, ok := raw.Data.(*RecognizeResponse)
	if !ok || resp == nil {
		return nil, sdk.EngineFailure(fmt.Sprintf("Failed to parse %s results: unexpected payload %T", e.Name(), raw.Data), nil)
	}

	pages := resp.Pages
	if len(pages) == 0 {
		pages = []sdk.Page{{PageNumber: 1, Text: resp.Text, Confidence: resp.Confidence}}
	}
	lang := resp.Lang
	if lang == "" {
		lang = e.Options().GetString("lang", "")
	}

	return &sdk.Result{
		Text:       resp.Text,
		Confidence: resp.Confidence,
		Pages:      pages,
		Metadata:   e.ResultMetadata(raw.Duration, lang),
	}, nil
}

// Close releases the connection or plugin process.
func (e *RemoteEngine) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

// DialEngine connects to a standalone recognizer at the descriptor's
// "address" option.
func DialEngine(ctx context.Context, desc sdk.Descriptor, logger *slog.Logger) (sdk.Engine, error) {
	addr := desc.Options.GetString("address", "")
	if addr == "" {
		return nil, fmt.Errorf("%w: grpc engine %q requires an address option", sdk.ErrInvalidConfig, desc.Name)
	}
	client, conn, err := Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("dial recognizer %s: %w", addr, err)
	}
	engine, err := NewRemoteEngine(ctx, desc, client, conn.Close, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return engine, nil
}
