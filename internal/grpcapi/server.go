package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/rmacdonaldsmith/meshchat-go/pkg/meshnode"
	"github.com/rmacdonaldsmith/meshchat-go/pkg/routingtable"
)

const (
	// DefaultAddress is the listen address when none is configured
	DefaultAddress = "127.0.0.1:9091"
	// DefaultStreamBuffer is the per-stream event backlog before events are dropped
	DefaultStreamBuffer = 256
)

// ErrMissingDependency is returned when the server is built without a node or routing table
var ErrMissingDependency = errors.New("grpc api requires a node and routing table")

// Config holds server configuration
type Config struct {
	Address      string
	StreamBuffer int
	Logger       *zap.Logger
}

// SetDefaults fills in unset values
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.StreamBuffer <= 0 {
		c.StreamBuffer = DefaultStreamBuffer
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// Server serves the Control service for one mesh node
type Server struct {
	node   meshnode.MeshNode
	routes routingtable.RoutingTable
	config Config
	logger *zap.Logger

	grpcServer *grpc.Server
	streamSeq  atomic.Uint64
	quit       chan struct{}
	stopOnce   sync.Once
}

// NewServer creates a gRPC server with the Control service registered
func NewServer(node meshnode.MeshNode, routes routingtable.RoutingTable, config Config, opts ...grpc.ServerOption) (*Server, error) {
	if node == nil || routes == nil {
		return nil, ErrMissingDependency
	}
	config.SetDefaults()

	s := &Server{
		node:   node,
		routes: routes,
		config: config,
		logger: config.Logger,
		quit:   make(chan struct{}),
	}

	opts = append(opts,
		grpc.ChainUnaryInterceptor(s.unaryLogging),
		grpc.ChainStreamInterceptor(s.streamLogging),
	)
	s.grpcServer = grpc.NewServer(opts...)
	RegisterControlServer(s.grpcServer, s)

	return s, nil
}

// Start listens on the configured address and serves until Stop
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener until Stop
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info("grpc api listening", zap.Stringer("address", listener.Addr()))
	err := s.grpcServer.Serve(listener)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Stop ends open event streams and waits for in-flight calls to finish
func (s *Server) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	s.grpcServer.GracefulStop()
}

// Send broadcasts a chat message
func (s *Server) Send(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if in.GetValue() == "" {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}
	if err := s.node.Send(in.GetValue()); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Connect joins the chat the given endpoint belongs to
func (s *Server) Connect(ctx context.Context, in *wrapperspb.StringValue) (*emptypb.Empty, error) {
	target, err := meshnode.ParseEndpoint(in.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.node.Connect(ctx, target); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Peers describes the node and its peer set
func (s *Server) Peers(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	reply, err := peersToStruct(s.node.LocalEndpoint(), s.node.State(), s.node.Peers())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return reply, nil
}

// Health reports node health; an unhealthy node is still a successful reply
func (s *Server) Health(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	subscribers, _ := s.routes.GetSubscriberCount(ctx)
	reply, err := healthToStruct(s.node.GetHealth(), subscribers)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return reply, nil
}

// Events streams live mesh events until the client goes away or the server stops
func (s *Server) Events(in *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	pattern, err := routingtable.NormalizePattern(in.GetValue())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	ctx := stream.Context()
	id := fmt.Sprintf("grpc-%d", s.streamSeq.Add(1))
	subscriber := routingtable.NewChannelSubscriber(id, routingtable.GRPCStream, s.config.StreamBuffer)
	if err := s.routes.Subscribe(ctx, pattern, subscriber); err != nil {
		return status.Error(codes.Unavailable, err.Error())
	}
	defer func() {
		_ = s.routes.UnsubscribeAll(context.WithoutCancel(ctx), id)
		_ = subscriber.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case <-s.quit:
			return status.Error(codes.Unavailable, "server stopping")
		case event, ok := <-subscriber.Events():
			if !ok {
				return nil
			}
			if err := stream.Send(eventToStruct(event)); err != nil {
				return err
			}
		}
	}
}

func (s *Server) unaryLogging(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Info("grpc call",
		zap.String("method", info.FullMethod),
		zap.Stringer("code", status.Code(err)),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, err
}

func (s *Server) streamLogging(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	s.logger.Info("grpc stream closed",
		zap.String("method", info.FullMethod),
		zap.Stringer("code", status.Code(err)),
		zap.Duration("duration", time.Since(start)),
	)
	return err
}

// toStatus maps node errors to gRPC status codes
func toStatus(err error) error {
	switch {
	case errors.Is(err, meshnode.ErrAlreadyInChat):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, meshnode.ErrDuplicatePeer):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, meshnode.ErrSelfConnect), errors.Is(err, meshnode.ErrInvalidEndpoint):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, meshnode.ErrHandshakeFailure):
		return status.Error(codes.Aborted, err.Error())
	default:
		// closed node, transport failures
		return status.Error(codes.Unavailable, err.Error())
	}
}

// Verify that Server implements the ControlServer interface at compile time
var _ ControlServer = (*Server)(nil)
