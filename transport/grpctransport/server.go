package grpctransport

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ajkula/sendcoordinator/domain/model"
	"github.com/ajkula/sendcoordinator/domain/port/outbound"
)

// Server hosts a DeliveryService backed by a real transport.Transport
// implementation, letting that transport be reached over the network
// instead of in-process — grounded on the teacher's grpc server shape
// (net.Listen + grpc.NewServer + Serve) but registered via the hand-built
// ServiceDesc instead of generated proto bindings.
type Server struct {
	delegate   outbound.Transport
	grpcServer *grpc.Server
}

// NewServer wraps delegate so it can be served over gRPC.
func NewServer(delegate outbound.Transport) *Server {
	return &Server{delegate: delegate}
}

// Start listens on address and serves until Stop is called. It returns the
// actual bound address, useful when address requests an ephemeral port
// (":0") such as in tests.
func (s *Server) Start(address string) (string, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}

	s.grpcServer = grpc.NewServer()
	desc := serviceDesc(s.handleAttempt)
	s.grpcServer.RegisterService(&desc, nil)

	go s.grpcServer.Serve(lis)
	return lis.Addr().String(), nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop() {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}

func (s *Server) handleAttempt(req wireRequest) (wireResponse, error) {
	msg := &model.Message{
		Destination:    req.Destination,
		Origin:         req.Origin,
		Subject:        req.Subject,
		Body:           req.Body,
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	}

	receipt, err := s.delegate.Attempt(context.Background(), msg)
	if err != nil {
		return wireResponse{}, status.Error(codes.Unavailable, err.Error())
	}

	return wireResponse{
		DeliveryID: receipt.DeliveryID,
		Timestamp:  receipt.Timestamp.Format(time.RFC3339),
	}, nil
}
