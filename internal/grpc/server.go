package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"cupgame-wallet/internal/svcerr"
)

// Server is the gRPC listener. It carries the standard health service, which
// reports NOT_SERVING while the readiness check fails.
type Server struct {
	GRPC   *grpc.Server
	Health *health.Server
	Log    zerolog.Logger
}

func NewServer(log zerolog.Logger) *Server {
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoveryUnaryInterceptor(log),
		ErrorUnaryInterceptor,
	))
	h := health.NewServer()
	healthpb.RegisterHealthServer(s, h)
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	return &Server{GRPC: s, Health: h, Log: log}
}

// WatchHealth runs check every interval until ctx is done and publishes the result.
func (s *Server) WatchHealth(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	s.updateHealth(ctx, check)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.updateHealth(ctx, check)
		}
	}
}

func (s *Server) updateHealth(ctx context.Context, check func(context.Context) error) {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := check(checkCtx); err != nil {
		s.Log.Warn().Err(err).Msg("readiness check failed")
		s.Health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	s.Health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}

// Serve listens on port until ctx is cancelled, then stops gracefully.
func (s *Server) Serve(ctx context.Context, port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}

	go func() {
		<-ctx.Done()
		s.Health.Shutdown()
		s.GRPC.GracefulStop()
	}()

	s.Log.Info().Str("port", port).Msg("gRPC server listening")
	return s.GRPC.Serve(lis)
}

func RecoveryUnaryInterceptor(log zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (_ any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Str("method", info.FullMethod).Interface("panic", r).Bytes("stack", debug.Stack()).Msg("handler panicked")
				err = status.Error(codes.Internal, fmt.Sprintf("Panic: `%s`", info.FullMethod))
			}
		}()
		return handler(ctx, req)
	}
}

// ErrorUnaryInterceptor turns service errors into status errors. Health is the
// only service registered today; services added to Server.GRPC get the same
// svcerr to code mapping as the HTTP handlers.
func ErrorUnaryInterceptor(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	if err != nil {
		return resp, StatusFromError(err)
	}
	return resp, nil
}

func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case svcerr.IsValidation(err):
		code = codes.InvalidArgument
	case svcerr.IsNotFound(err):
		code = codes.NotFound
	case svcerr.IsConflict(err):
		code = codes.FailedPrecondition
	case svcerr.IsLockTimeout(err):
		code = codes.Unavailable
	case svcerr.IsUpstream(err):
		code = codes.Unavailable
	}
	return status.Error(code, err.Error())
}
