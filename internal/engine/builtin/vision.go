package builtin

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/felixgeelhaar/multiocr/internal/engine/registry"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
)

func init() {
	registry.RegisterFactory(registry.TypeVision, func(ctx context.Context, desc sdk.Descriptor, logger *slog.Logger) (sdk.Engine, error) {
		return NewVisionEngine(ctx, desc, logger)
	})
}

const (
	visionName           = "Vision"
	defaultVisionTimeout = 60 * time.Second
	maxVisionResponse    = 32 << 20
)

// VisionFileTypes are the extensions the vision engine accepts by default.
var VisionFileTypes = []string{".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".gif", ".bmp", ".webp"}

// visionRequest is the body posted to the recognition endpoint.
type visionRequest struct {
	FileName      string   `json:"file_name"`
	Content       string   `json:"content"`
	LanguageHints []string `json:"language_hints,omitempty"`
}

// VisionEngine recognizes documents through an HTTP OCR service.
//
// Options: endpoint (required), timeout, lang, language_hints, and for
// OAuth2 client credentials token_url, client_id, client_secret_env, scopes.
type VisionEngine struct {
	sdk.Base
	endpoint string
	client   *http.Client
	tokens   oauth2.TokenSource
	initErr  error
	logger   *slog.Logger
}

var _ sdk.Engine = (*VisionEngine)(nil)

// NewVisionEngine creates the engine. When OAuth2 is configured, a token is
// fetched up front and the outcome recorded in the health window.
func NewVisionEngine(ctx context.Context, desc sdk.Descriptor, logger *slog.Logger) (*VisionEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if desc.Name == "" {
		desc.Name = visionName
	}
	if len(desc.FileTypes) == 0 {
		desc.FileTypes = VisionFileTypes
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	endpoint := desc.Options.GetString("endpoint", "")
	if endpoint == "" {
		return nil, fmt.Errorf("%w: vision engine %q requires an endpoint option", sdk.ErrInvalidConfig, desc.Name)
	}

	e := &VisionEngine{
		Base:     sdk.NewBase(desc),
		endpoint: endpoint,
		logger:   logger.With("engine", desc.Name),
	}
	timeout := desc.Options.GetDuration("timeout", defaultVisionTimeout)
	e.client = &http.Client{Timeout: timeout}

	if tokenURL := desc.Options.GetString("token_url", ""); tokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     desc.Options.GetString("client_id", ""),
			ClientSecret: os.Getenv(desc.Options.GetString("client_secret_env", "MULTIOCR_VISION_CLIENT_SECRET")),
			TokenURL:     tokenURL,
			Scopes:       desc.Options.GetStringSlice("scopes"),
		}
		// The token source outlives ctx, so it gets its own background context.
		e.tokens = cc.TokenSource(context.Background())
		e.client = &http.Client{
			Timeout:   timeout,
			Transport: &oauth2.Transport{Source: e.tokens, Base: http.DefaultTransport},
		}
	}

	e.initialize()
	return e, nil
}

func (e *VisionEngine) initialize() {
	if e.tokens == nil {
		e.RecordOutcome(true)
		return
	}
	if _, err := e.tokens.Token(); err != nil {
		e.initErr = sdk.CriticalFailure(fmt.Sprintf("Failed to initialize %s: %v", e.Name(), err), err)
		e.logger.Error("engine initialization failed", "error", e.initErr)
		e.RecordOutcome(false)
		return
	}
	e.RecordOutcome(true)
}

// InitErr returns the initialization failure, if any.
func (e *VisionEngine) InitErr() error {
	return e.initErr
}

// PrepareFile validates the document.
func (e *VisionEngine) PrepareFile(_ context.Context, path string) (*sdk.PreparedFile, error) {
	return e.Validate(path)
}

// ProcessFile posts the document and keeps the raw JSON response.
func (e *VisionEngine) ProcessFile(ctx context.Context, prepared *sdk.PreparedFile) (*sdk.RawResult, error) {
	content, err := prepared.Load()
	if err != nil {
		return nil, sdk.EngineFailure(fmt.Sprintf("%s processing failed: %v", e.Name(), err), err)
	}

	body, err := json.Marshal(visionRequest{
		FileName:      filepath.Base(prepared.Path),
		Content:       base64.StdEncoding.EncodeToString(content),
		LanguageHints: e.languageHints(),
	})
	if err != nil {
		return nil, sdk.EngineFailure(fmt.Sprintf("%s processing failed: %v", e.Name(), err), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, sdk.EngineFailure(fmt.Sprintf("%s processing failed: %v", e.Name(), err), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, sdk.EngineFailure(fmt.Sprintf("%s processing failed: %v", e.Name(), err), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxVisionResponse))
	if err != nil {
		return nil, sdk.EngineFailure(fmt.Sprintf("%s processing failed: %v", e.Name(), err), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := gjson.GetBytes(payload, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, sdk.EngineFailure(fmt.Sprintf("%s processing failed: status %d: %s", e.Name(), resp.StatusCode, msg), nil)
	}

	return &sdk.RawResult{
		Prepared:  prepared,
		Output:    payload,
		StartedAt: started,
		Duration:  time.Since(started),
	}, nil
}

// ParseResults reads text, confidence, and pages from the response.
func (e *VisionEngine) ParseResults(_ context.Context, raw *sdk.RawResult) (*sdk.Result, error) {
	if !gjson.ValidBytes(raw.Output) {
		return nil, sdk.EngineFailure(fmt.Sprintf("Failed to parse %s results: invalid JSON", e.Name()), nil)
	}
	doc := gjson.ParseBytes(raw.Output)

	text := doc.Get("text")
	if !text.Exists() {
		return nil, sdk.EngineFailure(fmt.Sprintf("Failed to parse %s results: missing text", e.Name()), nil)
	}

	result := &sdk.Result{
		Text:       text.String(),
		Confidence: confidenceOf(doc.Get("confidence")),
		Metadata:   e.ResultMetadata(raw.Duration, doc.Get("lang").String()),
	}
	if result.Metadata.Lang == "" {
		result.Metadata.Lang = e.Options().GetString("lang", "")
	}
	if v := doc.Get("version").String(); v != "" {
		result.Metadata.EngineVersion = v
	}

	for i, page := range doc.Get("pages").Array() {
		number := int(page.Get("page_number").Int())
		if number == 0 {
			number = i + 1
		}
		result.Pages = append(result.Pages, sdk.Page{
			PageNumber: number,
			Text:       page.Get("text").String(),
			Confidence: confidenceOf(page.Get("confidence")),
		})
	}
	if len(result.Pages) == 0 {
		result.Pages = []sdk.Page{{PageNumber: 1, Text: result.Text, Confidence: result.Confidence}}
	}
	return result, nil
}

func (e *VisionEngine) languageHints() []string {
	hints := e.Options().GetStringSlice("language_hints")
	if len(hints) == 0 {
		if lang := e.Options().GetString("lang", ""); lang != "" {
			hints = []string{lang}
		}
	}
	return hints
}

func confidenceOf(r gjson.Result) *float64 {
	if r.Type != gjson.Number {
		return nil
	}
	return sdk.Confidence(r.Float())
}
