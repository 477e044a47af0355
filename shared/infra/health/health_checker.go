package health

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Checker returns nil while the service is able to do its work.
type Checker func(ctx context.Context) error

type Server struct {
	grpc_health_v1.UnimplementedHealthServer

	checker Checker
}

func NewServer(checker Checker) *Server {
	return &Server{checker: checker}
}

func (s *Server) Check(
	ctx context.Context,
	_ *grpc_health_v1.HealthCheckRequest,
) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{Status: s.status(ctx)}, nil
}

func (s *Server) Watch(
	_ *grpc_health_v1.HealthCheckRequest,
	stream grpc_health_v1.Health_WatchServer,
) error {
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: s.status(stream.Context())})
}

func (s *Server) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if s.checker != nil && s.checker(ctx) != nil {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

func RegisterService(server *grpc.Server, checker Checker) {
	grpc_health_v1.RegisterHealthServer(server, NewServer(checker))
}
