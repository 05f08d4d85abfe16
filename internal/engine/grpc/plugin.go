// Package grpc provides gRPC-based communication for out-of-process OCR engines.
// Plugin binaries are managed with HashiCorp's go-plugin; standalone recognizer
// services are reached over a plain gRPC connection using the same service.
package grpc

import (
	"context"

	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
)

// HandshakeConfig is used to verify that the plugin is compatible.
// Both the host and plugins must use the same handshake configuration.
var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "MULTIOCR_ENGINE_PLUGIN",
	MagicCookieValue: "multiocr-recognizer-v1",
}

// PluginName is the key under which recognizers are dispensed.
const PluginName = "recognizer"

// PluginMap returns the plugin map served and dispensed by MultiOCR.
func PluginMap(impl Recognizer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginName: &RecognizerPlugin{Impl: impl},
	}
}

// Recognizer is implemented by out-of-process OCR engines.
type Recognizer interface {
	// Describe reports the engine's identity and accepted file types.
	Describe(ctx context.Context) (*DescribeResponse, error)

	// Recognize performs OCR on the document carried in req.
	Recognize(ctx context.Context, req *RecognizeRequest) (*RecognizeResponse, error)
}

// RecognizerPlugin is the plugin.Plugin implementation for recognizers.
type RecognizerPlugin struct {
	plugin.Plugin
	// Impl is the concrete implementation (plugin-side).
	Impl Recognizer
}

var _ plugin.GRPCPlugin = (*RecognizerPlugin)(nil)

// GRPCServer registers the recognizer service on the plugin's server.
func (p *RecognizerPlugin) GRPCServer(_ *plugin.GRPCBroker, s *grpc.Server) error {
	RegisterRecognizerServer(s, p.Impl)
	return nil
}

// GRPCClient returns the host-side client for a dispensed plugin.
func (p *RecognizerPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, c *grpc.ClientConn) (interface{}, error) {
	return NewClient(c), nil
}

// DescribeResponse is the identity a recognizer reports.
type DescribeResponse struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	FileTypes []string `json:"file_types"`
}

// RecognizeRequest carries one document to a recognizer.
type RecognizeRequest struct {
	FileName string      `json:"file_name"`
	Ext      string      `json:"ext"`
	Content  []byte      `json:"content"`
	Options  sdk.Options `json:"options,omitempty"`
}

// RecognizeResponse is a recognizer's output for one document.
type RecognizeResponse struct {
	Text       string     `json:"text"`
	Confidence *float64   `json:"confidence"`
	Pages      []sdk.Page `json:"pages"`
	Lang       string     `json:"lang,omitempty"`
}
