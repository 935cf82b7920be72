package server

import (
	"context"
	"errors"
	"iter"
	"slices"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/onlythejoe/void-engine/internal/analytics"
	"github.com/onlythejoe/void-engine/internal/codec"
	"github.com/onlythejoe/void-engine/internal/engine"
	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
	"github.com/onlythejoe/void-engine/internal/persist"
)

// #region interfaces
// Engine is what the service drives. *engine.Engine satisfies it.
type Engine interface {
	Tick(ctx context.Context, reading memory.Reading) (engine.TickResult, error)
	Analyze() analytics.Rolling
	Parameters() feedback.Parameters
	Flush(ctx context.Context) error
	Snapshots() iter.Seq[memory.Snapshot]
	Field() *memory.Field
}

// MemoryFieldServer is the server side of the MemoryField service.
type MemoryFieldServer interface {
	Record(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Analyze(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Parameters(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	Flush(ctx context.Context, in *emptypb.Empty) (*emptypb.Empty, error)
	Snapshots(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

// #endregion interfaces

// #region service-desc
var serviceDesc = grpc.ServiceDesc{
	ServiceName: codec.ServiceName,
	HandlerType: (*MemoryFieldServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Record", Handler: unary(codec.MethodRecord, MemoryFieldServer.Record)},
		{MethodName: "Analyze", Handler: unary(codec.MethodAnalyze, MemoryFieldServer.Analyze)},
		{MethodName: "Parameters", Handler: unary(codec.MethodParameters, MemoryFieldServer.Parameters)},
		{MethodName: "Flush", Handler: unary(codec.MethodFlush, MemoryFieldServer.Flush)},
		{MethodName: "Snapshots", Handler: unary(codec.MethodSnapshots, MemoryFieldServer.Snapshots)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "voidengine/memory/v1/memory_field.proto",
}

// RegisterMemoryFieldServer registers srv on s.
func RegisterMemoryFieldServer(s grpc.ServiceRegistrar, srv MemoryFieldServer) {
	s.RegisterService(&serviceDesc, srv)
}

// unary builds a method handler that decodes Req, runs the interceptor chain and
// dispatches to call.
func unary[Req proto.Message, Resp any](fullMethod string, call func(MemoryFieldServer, context.Context, Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newMessage[Req]()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MemoryFieldServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MemoryFieldServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func newMessage[M proto.Message]() M {
	var zero M
	return zero.ProtoReflect().Type().New().Interface().(M)
}

// #endregion service-desc

// #region service
// Service adapts an Engine to the gRPC surface.
type Service struct {
	engine Engine
}

var _ MemoryFieldServer = (*Service)(nil)

// NewService creates a service over e.
func NewService(e Engine) *Service {
	return &Service{engine: e}
}

// Record ticks the engine with one reading. A reading that was recorded but whose
// archive or flush step failed is answered with a warning instead of an error.
func (s *Service) Record(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	reading, err := codec.DecodeReading(in)
	if err != nil {
		return nil, toStatus(err)
	}
	res, err := s.engine.Tick(ctx, reading)
	if err != nil && res.Tick == 0 {
		return nil, toStatus(err)
	}
	reply := codec.RecordReply{
		Tick:       res.Tick,
		Snapshot:   res.Snapshot,
		Evicted:    res.Evicted,
		Analytics:  res.Analytics,
		Parameters: res.Parameters,
		Flushed:    res.Flushed,
	}
	if err != nil {
		reply.Warning = err.Error()
	}
	return codec.EncodeRecordReply(reply), nil
}

// Analyze returns rolling analytics over the current field.
func (s *Service) Analyze(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return codec.EncodeRolling(s.engine.Analyze()), nil
}

// Parameters returns the currently derived control parameters.
func (s *Service) Parameters(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return codec.EncodeParameters(s.engine.Parameters()), nil
}

// Flush persists the field now.
func (s *Service) Flush(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.engine.Flush(ctx); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Snapshots lists the retained window, oldest first.
func (s *Service) Snapshots(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return codec.EncodeSnapshotList(codec.SnapshotList{
		Capacity:  s.engine.Field().Cap(),
		Snapshots: slices.Collect(s.engine.Snapshots()),
	}), nil
}

// #endregion service

// #region errors
// toStatus maps domain errors onto gRPC codes.
func toStatus(err error) error {
	var ioErr *persist.IOError
	switch {
	case errors.Is(err, memory.ErrValidation), errors.Is(err, codec.ErrMalformed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, memory.ErrConfiguration), errors.Is(err, persist.ErrIncompatibleFormat):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.As(err, &ioErr):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// #endregion errors
