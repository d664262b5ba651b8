package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/idlink/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const (
	accountIDKey   ctxKey = "accountID"
	accessTokenKey ctxKey = "accessToken"
)

// protectedMethods require a valid access token.
var protectedMethods = map[string]struct{}{
	LinkMethod:       {},
	IdentitiesMethod: {},
	RevokeMethod:     {},
}

func accountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}

func accessTokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(accessTokenKey).(string)
	return t, ok && t != ""
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if _, ok := protectedMethods[info.FullMethod]; !ok {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(common.AccessTokenHeaderName); len(values) > 0 {
			accessToken = values[0]
		}
	}
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	accountID, err := s.verifier.Verify(ctx, accessToken)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrTokenExpired):
		return nil, status.Error(codes.Unauthenticated, "token expired")
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrorNotFound):
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	default:
		s.logger.Error(ctx, "token verification failed", "method", info.FullMethod, "error", err)
		return nil, status.Error(codes.Internal, "token verification failed")
	}

	ctx = context.WithValue(ctx, accountIDKey, accountID)
	ctx = context.WithValue(ctx, accessTokenKey, accessToken)
	return handler(ctx, req)
}
