package grpctransport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ajkula/sendcoordinator/domain/model"
	"github.com/ajkula/sendcoordinator/transport/mock"
)

func TestGRPCTransport_RoundTrip(t *testing.T) {
	delegate := mock.New("upstream", 0, 0)

	srv := NewServer(delegate)
	addr, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Stop()

	client, err := Dial("remote", addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	receipt, err := client.Attempt(ctx, &model.Message{Destination: "a@x", Origin: "b@y", Subject: "s", Body: "b"})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.DeliveryID)
	assert.Equal(t, "remote", receipt.Transport)
}

func TestGRPCTransport_PropagatesDelegateFailure(t *testing.T) {
	delegate := mock.New("upstream", 1.0, 0)

	srv := NewServer(delegate)
	addr, err := srv.Start("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Stop()

	client, err := Dial("remote", addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = client.Attempt(ctx, &model.Message{Destination: "a@x", Origin: "b@y", Subject: "s", Body: "b"})
	assert.Error(t, err)
}
