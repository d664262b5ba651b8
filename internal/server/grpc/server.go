// Package grpc exposes the federated login service over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/idlink/internal/logging"
	"github.com/dmitrijs2005/idlink/internal/server/models"
	"github.com/dmitrijs2005/idlink/internal/server/passport"
	"google.golang.org/grpc"
)

// LoginService is the part of passport.Service the transport needs.
type LoginService interface {
	Login(ctx context.Context, req passport.LoginRequest, opts passport.Options) (*passport.LoginResult, error)
	Link(ctx context.Context, accountID string, req passport.LoginRequest) (*models.ExternalIdentity, error)
	Identities(ctx context.Context, accountID string) ([]*models.ExternalIdentity, error)
}

// TokenVerifier resolves an access token to its account id and revokes
// tokens on request.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string) error
}

type GRPCServer struct {
	address  string
	logins   LoginService
	verifier TokenVerifier
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, logins LoginService, verifier TokenVerifier) (*GRPCServer, error) {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		logins:   logins,
		verifier: verifier,
	}, nil
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	RegisterFederatedLoginServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
