package grpcapi

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
)

// Client is a typed client for the Control service
type Client struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// NewClient wraps an existing connection; the caller owns it
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to a Control server. Without options the connection is plaintext.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}
	return &Client{cc: conn, conn: conn}, nil
}

// Close closes the connection if Dial created it
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Send broadcasts text through the node
func (c *Client) Send(ctx context.Context, text string) error {
	return c.cc.Invoke(ctx, sendMethod, wrapperspb.String(text), new(emptypb.Empty))
}

// Connect asks the node to join the chat endpoint belongs to
func (c *Client) Connect(ctx context.Context, endpoint string) error {
	return c.cc.Invoke(ctx, connectMethod, wrapperspb.String(endpoint), new(emptypb.Empty))
}

// Peers returns the node's endpoint, state and peer set
func (c *Client) Peers(ctx context.Context) (PeersInfo, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, peersMethod, new(emptypb.Empty), out); err != nil {
		return PeersInfo{}, err
	}
	return peersFromStruct(out), nil
}

// Health returns the node's health summary
func (c *Client) Health(ctx context.Context) (HealthInfo, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, healthMethod, new(emptypb.Empty), out); err != nil {
		return HealthInfo{}, err
	}
	return healthFromStruct(out), nil
}

// EventStream receives mesh events from an Events call
type EventStream struct {
	stream grpc.ServerStreamingClient[structpb.Struct]
}

// Recv blocks for the next event
func (s *EventStream) Recv() (meshnode.Event, error) {
	msg, err := s.stream.Recv()
	if err != nil {
		return meshnode.Event{}, err
	}
	return eventFromStruct(msg)
}

// Events subscribes to live events of kind ("" for all). Cancel ctx to end the stream.
func (c *Client) Events(ctx context.Context, kind string) (*EventStream, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], eventsMethod)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(wrapperspb.String(kind)); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return &EventStream{stream: x}, nil
}
