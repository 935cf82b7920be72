package codec

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/onlythejoe/void-engine/internal/analytics"
	"github.com/onlythejoe/void-engine/internal/feedback"
	"github.com/onlythejoe/void-engine/internal/memory"
)

// #region client-struct
// Client wraps the gRPC connection to a running memory field service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient creates a new client connected to the given address.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a client over an existing connection (for testing).
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client owns it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region record
// Record sends one reading to the service.
func (c *Client) Record(ctx context.Context, r memory.Reading) (RecordReply, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodRecord, EncodeReading(r), out); err != nil {
		return RecordReply{}, fmt.Errorf("record rpc: %w", err)
	}
	return DecodeRecordReply(out)
}

// #endregion record

// #region analyze
// Analyze fetches rolling analytics over the service's current field.
func (c *Client) Analyze(ctx context.Context) (analytics.Rolling, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodAnalyze, &emptypb.Empty{}, out); err != nil {
		return analytics.Rolling{}, fmt.Errorf("analyze rpc: %w", err)
	}
	return DecodeRolling(out)
}

// #endregion analyze

// #region parameters
// Parameters fetches the currently derived control parameters.
func (c *Client) Parameters(ctx context.Context) (feedback.Parameters, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodParameters, &emptypb.Empty{}, out); err != nil {
		return feedback.Parameters{}, fmt.Errorf("parameters rpc: %w", err)
	}
	return DecodeParameters(out)
}

// #endregion parameters

// #region flush
// Flush asks the service to persist its field now.
func (c *Client) Flush(ctx context.Context) error {
	if err := c.cc.Invoke(ctx, MethodFlush, &emptypb.Empty{}, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("flush rpc: %w", err)
	}
	return nil
}

// #endregion flush

// #region snapshots
// Snapshots lists the service's retained window, oldest first.
func (c *Client) Snapshots(ctx context.Context) (SnapshotList, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodSnapshots, &emptypb.Empty{}, out); err != nil {
		return SnapshotList{}, fmt.Errorf("snapshots rpc: %w", err)
	}
	return DecodeSnapshotList(out)
}

// #endregion snapshots
