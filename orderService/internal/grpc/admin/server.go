package admin

import (
	grpcRecovery "github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/nastyazhadan/spot-order-trigger/shared/infra/health"
	logInterceptor "github.com/nastyazhadan/spot-order-trigger/shared/interceptors/logger"
	"github.com/nastyazhadan/spot-order-trigger/shared/interceptors/recovery"
	"github.com/nastyazhadan/spot-order-trigger/shared/interceptors/xrequestid"
)

// NewServer builds the admin gRPC server. It only exposes grpc.health.v1,
// backed by checker, and reflection for grpcurl.
func NewServer(checker health.Checker) *grpc.Server {
	recoverer := grpcRecovery.UnaryServerInterceptor(
		grpcRecovery.WithRecoveryHandlerContext(recovery.GRPCHandler),
	)

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			xrequestid.Server,
			logInterceptor.UnaryInterceptor(),
			recoverer,
		),
		grpc.ChainStreamInterceptor(
			grpcRecovery.StreamServerInterceptor(
				grpcRecovery.WithRecoveryHandlerContext(recovery.GRPCHandler),
			),
		),
	)

	health.RegisterService(server, checker)
	reflection.Register(server)

	return server
}
