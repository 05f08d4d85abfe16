package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client is the host-side Recognizer backed by a gRPC connection.
type Client struct {
	conn grpc.ClientConnInterface
}

var _ Recognizer = (*Client)(nil)

// NewClient wraps an established connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial connects to a standalone recognizer service at addr.
func Dial(addr string) (*Client, *grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(MaxDocumentBytes),
			grpc.MaxCallSendMsgSize(MaxDocumentBytes),
		),
	)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn), conn, nil
}

// Describe calls the Describe RPC.
func (c *Client) Describe(ctx context.Context) (*DescribeResponse, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, describeMethod, &structpb.Struct{}, out); err != nil {
		return nil, err
	}
	var resp DescribeResponse
	if err := decode(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Recognize calls the Recognize RPC.
func (c *Client) Recognize(ctx context.Context, req *RecognizeRequest) (*RecognizeResponse, error) {
	in, err := encode(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, recognizeMethod, in, out, grpc.MaxCallSendMsgSize(MaxDocumentBytes)); err != nil {
		return nil, err
	}
	var resp RecognizeResponse
	if err := decode(out, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
