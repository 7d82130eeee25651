// Package grpctransport is a Transport backed by a real gRPC round trip.
// It deliberately avoids protoc-generated bindings: the wire envelope is a
// JSON-encoded payload carried inside wrapperspb.StringValue, a real
// generated message type shipped by google.golang.org/protobuf's
// well-known types. This still exercises genuine grpc-go client/server
// plumbing (codecs, streams, status codes) without a generated .pb.go file.
package grpctransport

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName = "sendcoordinator.DeliveryService"
	methodName  = "Attempt"
	fullMethod  = "/" + serviceName + "/" + methodName
)

// wireRequest is JSON-encoded into the wrapperspb.StringValue sent over
// the wire.
type wireRequest struct {
	Destination    string         `json:"destination"`
	Origin         string         `json:"origin"`
	Subject        string         `json:"subject"`
	Body           string         `json:"body"`
	IdempotencyKey string         `json:"idempotencyKey,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// wireResponse is the successful-delivery JSON payload; failures are
// surfaced as gRPC status errors instead of a populated response.
type wireResponse struct {
	DeliveryID string `json:"deliveryId"`
	Timestamp  string `json:"timestamp"` // RFC3339
}

func encodeRequest(req wireRequest) (*wrapperspb.StringValue, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	return wrapperspb.String(string(b)), nil
}

func decodeRequest(msg *wrapperspb.StringValue) (wireRequest, error) {
	var req wireRequest
	err := json.Unmarshal([]byte(msg.GetValue()), &req)
	return req, err
}

func encodeResponse(resp wireResponse) (*wrapperspb.StringValue, error) {
	b, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return wrapperspb.String(string(b)), nil
}

func decodeResponse(msg *wrapperspb.StringValue) (wireResponse, error) {
	var resp wireResponse
	err := json.Unmarshal([]byte(msg.GetValue()), &resp)
	return resp, err
}

// AttemptHandler is the server-side delivery capability that backs the
// service; servers inject their real delivery logic here.
type AttemptHandler func(req wireRequest) (wireResponse, error)

// serviceDesc hand-builds the grpc.ServiceDesc that protoc-gen-go-grpc
// would otherwise generate: one unary method, Attempt, on DeliveryService.
func serviceDesc(handler AttemptHandler) grpc.ServiceDesc {
	return grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: methodName,
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := new(wrapperspb.StringValue)
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return invokeHandler(handler, in)
					}
					info := &grpc.UnaryServerInfo{FullMethod: fullMethod}
					return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
						return invokeHandler(handler, req.(*wrapperspb.StringValue))
					})
				},
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "sendcoordinator/delivery.proto",
	}
}

func invokeHandler(handler AttemptHandler, in *wrapperspb.StringValue) (any, error) {
	req, err := decodeRequest(in)
	if err != nil {
		return nil, err
	}
	resp, err := handler(req)
	if err != nil {
		return nil, err
	}
	return encodeResponse(resp)
}
