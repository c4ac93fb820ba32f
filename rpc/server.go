package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/spooky-finn/cryptowave/infrastructure/logger"
	"github.com/spooky-finn/cryptowave/usecase"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

var log = logger.New("rpc")

type server struct {
	orderbookSnapshotUseCase *usecase.OrderBookSnapshotUseCase
	validationService        *ValidationService
}

func NewServer(uc *usecase.OrderBookSnapshotUseCase, conf *ValidationServiceConfig) *server {
	return &server{
		orderbookSnapshotUseCase: uc,
		validationService:        NewValidationService(conf),
	}
}

// NewGRPCServer registers srv on a grpc.Server that logs every call.
func NewGRPCServer(srv MarketDataServiceServer) *grpc.Server {
	s := grpc.NewServer(grpc.UnaryInterceptor(logCalls))
	RegisterMarketDataServiceServer(s, srv)
	return s
}

func logCalls(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		log.Debugw("rpc failed", "method", info.FullMethod, "code", status.Code(err).String(), "error", err)
	} else {
		log.Debugw("rpc served", "method", info.FullMethod, "elapsed", time.Since(start))
	}
	return resp, err
}

// Serve listens on addr until ctx is done, then stops gracefully.
func Serve(ctx context.Context, addr string, srv MarketDataServiceServer) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := NewGRPCServer(srv)
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	log.Infow("grpc server listening", "addr", lis.Addr().String())
	if err := s.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
