package enginesdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/go-plugin"
	ggrpc "google.golang.org/grpc"

	"github.com/felixgeelhaar/multiocr/internal/engine/grpc"
	"github.com/felixgeelhaar/multiocr/internal/engine/registry"
)

// OptionsEnv names the variable through which the host passes engine options.
const OptionsEnv = registry.PluginOptionsEnv

// Serve runs the recognizer as a go-plugin child process. It blocks until the
// host kills the plugin. Call it from the plugin binary's main function.
func Serve(r Recognizer) {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: grpc.HandshakeConfig,
		Plugins:         grpc.PluginMap(r),
		GRPCServer: func(opts []ggrpc.ServerOption) *ggrpc.Server {
			opts = append(opts, ggrpc.MaxRecvMsgSize(grpc.MaxDocumentBytes), ggrpc.MaxSendMsgSize(grpc.MaxDocumentBytes))
			return plugin.DefaultGRPCServer(opts)
		},
	})
}

// ListenAndServe exposes the recognizer as a standalone gRPC service on addr,
// for hosts configured with a "grpc" engine. It returns when ctx is done.
func ListenAndServe(ctx context.Context, addr string, r Recognizer) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return ServeListener(ctx, lis, r)
}

// ServeListener serves the recognizer on an existing listener.
func ServeListener(ctx context.Context, lis net.Listener, r Recognizer) error {
	srv := ggrpc.NewServer(
		ggrpc.MaxRecvMsgSize(grpc.MaxDocumentBytes),
		ggrpc.MaxSendMsgSize(grpc.MaxDocumentBytes),
	)
	grpc.RegisterRecognizerServer(srv, r)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(lis) }()

	select {
	case <-ctx.Done():
		srv.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, ggrpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// LoadOptions decodes the engine options the host passed to this process.
// A missing variable yields empty options.
func LoadOptions() (Options, error) {
	raw := os.Getenv(OptionsEnv)
	if raw == "" {
		return Options{}, nil
	}
	var opts Options
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, fmt.Errorf("parse %s: %w", OptionsEnv, err)
	}
	return opts, nil
}
