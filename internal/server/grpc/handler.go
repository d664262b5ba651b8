package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/idlink/internal/common"
	"github.com/dmitrijs2005/idlink/internal/server/models"
	"github.com/dmitrijs2005/idlink/internal/server/passport"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	loginReq, opts, err := decodeLogin(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	result, err := s.logins.Login(ctx, loginReq, opts)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out, err := encodeLoginResult(result)
	if err != nil {
		s.logger.Error(ctx, "encode login result", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

func (s *GRPCServer) Link(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, ok := accountIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	linkReq, err := decodeAssertion(req)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	identity, err := s.logins.Link(ctx, accountID, linkReq)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	out, err := toStruct(map[string]any{"identity": identity})
	if err != nil {
		s.logger.Error(ctx, "encode identity", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// Identities lists the identities linked to the caller's account.
func (s *GRPCServer) Identities(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	accountID, ok := accountIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	list, err := s.logins.Identities(ctx, accountID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	if list == nil {
		list = []*models.ExternalIdentity{}
	}

	out, err := toStruct(map[string]any{"identities": list})
	if err != nil {
		s.logger.Error(ctx, "encode identities", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// Revoke invalidates the access token the call was made with.
func (s *GRPCServer) Revoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	token, ok := accessTokenFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	if err := s.verifier.Revoke(ctx, token); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return structpb.NewStruct(map[string]any{"revoked": true})
}

func (s *GRPCServer) Ping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"status": "OK"})
}

// toStatus maps service errors to gRPC status codes. Internal details are
// logged, not returned.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, models.ErrInvalidCredentials),
		errors.Is(err, passport.ErrMissingEmail),
		errors.Is(err, passport.ErrMissingExternalID):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, passport.ErrIdentityLinked):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, passport.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	}
	s.logger.Error(ctx, "request failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}
