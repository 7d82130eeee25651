package grpctransport

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ajkula/sendcoordinator/domain/model"
)

// Transport is an outbound.Transport that delivers over gRPC to a remote
// Server, letting a provider live in a separate process.
type Transport struct {
	name string
	conn *grpc.ClientConn
}

// Dial connects to address and returns a Transport named name.
func Dial(name, address string, opts ...grpc.DialOption) (*Transport, error) {
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpctransport: dial %s: %w", address, err)
	}
	return &Transport{name: name, conn: conn}, nil
}

func (t *Transport) Name() string { return t.name }

// Close releases the underlying connection.
func (t *Transport) Close() error { return t.conn.Close() }

// Attempt implements outbound.Transport by invoking the hand-built
// DeliveryService/Attempt RPC.
func (t *Transport) Attempt(ctx context.Context, message *model.Message) (model.DeliveryReceipt, error) {
	req, err := encodeRequest(wireRequest{
		Destination:    message.Destination,
		Origin:         message.Origin,
		Subject:        message.Subject,
		Body:           message.Body,
		IdempotencyKey: message.IdempotencyKey,
		Metadata:       message.Metadata,
	})
	if err != nil {
		return model.DeliveryReceipt{}, err
	}

	out := new(wrapperspb.StringValue)
	if err := t.conn.Invoke(ctx, fullMethod, req, out); err != nil {
		return model.DeliveryReceipt{}, fmt.Errorf("%s: %w", t.name, err)
	}

	resp, err := decodeResponse(out)
	if err != nil {
		return model.DeliveryReceipt{}, err
	}

	ts, err := time.Parse(time.RFC3339, resp.Timestamp)
	if err != nil {
		ts = time.Now()
	}

	return model.DeliveryReceipt{
		DeliveryID: resp.DeliveryID,
		Timestamp:  ts,
		Transport:  t.name,
	}, nil
}
