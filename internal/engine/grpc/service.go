package grpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName     = "multiocr.plugin.v1.Recognizer"
	describeMethod  = "/" + serviceName + "/Describe"
	recognizeMethod = "/" + serviceName + "/Recognize"

	// MaxDocumentBytes bounds a single Recognize message in either direction.
	MaxDocumentBytes = 64 << 20
)

// recognizerServer is the wire-level service. Messages are generic structs
// so plugins need no generated code.
type recognizerServer interface {
	Describe(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Recognize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the recognizer service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*recognizerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Describe", Handler: unaryHandler(describeMethod, recognizerServer.Describe)},
		{MethodName: "Recognize", Handler: unaryHandler(recognizeMethod, recognizerServer.Recognize)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "multiocr/plugin/v1/recognizer.proto",
}

type unaryMethod func(recognizerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(recognizerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(recognizerServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterRecognizerServer registers impl on s.
func RegisterRecognizerServer(s grpc.ServiceRegistrar, impl Recognizer) {
	s.RegisterService(&ServiceDesc, &server{impl: impl})
}

// server adapts a Recognizer to the wire-level service.
type server struct {
	impl Recognizer
}

func (s *server) Describe(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	resp, err := s.impl.Describe(ctx)
	if err != nil {
		return nil, err
	}
	return encode(resp)
}

func (s *server) Recognize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RecognizeRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	resp, err := s.impl.Recognize(ctx, &req)
	if err != nil {
		return nil, err
	}
	return encode(resp)
}

// encode converts a JSON-tagged value into a protobuf Struct.
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	return structpb.NewStruct(m)
}

// decode fills out from a protobuf Struct.
func decode(s *structpb.Struct, out any) error {
	data, err := json.Marshal(s.AsMap())
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	return nil
}
