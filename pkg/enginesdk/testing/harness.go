// Package testing drives recognizer plugins through the same pipeline the
// host uses, without launching a plugin process.
//
//	func TestShouty(t *testing.T) {
//		h := enginetesting.NewHarness(shouty{}).OverWire()
//		result, err := h.Run(context.Background(), "testdata/sample.png")
//		require.NoError(t, err)
//		assert.Equal(t, "SAMPLE.PNG", result.Text)
//	}
package testing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"

	ggrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/felixgeelhaar/multiocr/internal/engine/grpc"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"github.com/felixgeelhaar/multiocr/pkg/enginesdk"
)

const bufSize = 1 << 20

// Harness runs a recognizer through prepare, process, and parse.
type Harness struct {
	recognizer enginesdk.Recognizer
	options    enginesdk.Options
	logger     *slog.Logger
	wire       bool
}

// NewHarness creates a harness around r.
func NewHarness(r enginesdk.Recognizer) *Harness {
	return &Harness{
		recognizer: r,
		options:    enginesdk.Options{},
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithOptions sets the engine options passed with every request.
func (h *Harness) WithOptions(opts enginesdk.Options) *Harness {
	h.options = opts
	return h
}

// WithLogger sets a custom logger.
func (h *Harness) WithLogger(logger *slog.Logger) *Harness {
	h.logger = logger
	return h
}

// OverWire routes calls through an in-memory gRPC connection so request and
// response encoding is exercised too.
func (h *Harness) OverWire() *Harness {
	h.wire = true
	return h
}

// Engine builds the host-side engine for the recognizer. The returned
// function releases the in-memory connection, if any.
func (h *Harness) Engine(ctx context.Context) (sdk.Engine, func(), error) {
	recognizer := h.recognizer
	cleanup := func() {}

	if h.wire {
		client, stop, err := dialBuffer(h.recognizer)
		if err != nil {
			return nil, nil, err
		}
		recognizer, cleanup = client, stop
	}

	engine, err := grpc.NewRemoteEngine(ctx, sdk.Descriptor{Options: h.options}, recognizer, nil, h.logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, cleanup, nil
}

// Describe returns what the recognizer reports about itself.
func (h *Harness) Describe(ctx context.Context) (*enginesdk.DescribeResponse, error) {
	return h.recognizer.Describe(ctx)
}

// Run recognizes the document at path and returns the host's view of the result.
func (h *Harness) Run(ctx context.Context, path string) (*enginesdk.Result, error) {
	engine, cleanup, err := h.Engine(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	return sdk.Run(ctx, engine, path, sdk.WithLogger(h.logger))
}

func dialBuffer(r enginesdk.Recognizer) (*grpc.Client, func(), error) {
	lis := bufconn.Listen(bufSize)
	srv := ggrpc.NewServer(ggrpc.MaxRecvMsgSize(grpc.MaxDocumentBytes))
	grpc.RegisterRecognizerServer(srv, r)
	go func() { _ = srv.Serve(lis) }()

	conn, err := ggrpc.NewClient("passthrough:///bufnet",
		ggrpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		ggrpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		srv.Stop()
		return nil, nil, fmt.Errorf("dial in-memory recognizer: %w", err)
	}

	return grpc.NewClient(conn), func() {
		_ = conn.Close()
		srv.Stop()
	}, nil
}
