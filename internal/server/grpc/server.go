// Package grpcserver exposes the identity API over gRPC.
package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/and161185/food-advisor/internal/authctx"
	"github.com/and161185/food-advisor/internal/errs"
	"github.com/and161185/food-advisor/internal/service"
)

// Server wires services into gRPC handlers.
type Server struct {
	auth  service.AuthService
	users service.UserService
	log   *zap.Logger
}

var _ IdentityServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(auth service.AuthService, users service.UserService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, users: users, log: log}
}

// remoteIP returns the peer host without the port, so every connection from one address
// shares a limiter key.
func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// Login authenticates by {email, password} and returns {token, user_id, email, role}.
func (s *Server) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	sess, err := s.auth.Login(ctx, f["email"].GetStringValue(), f["password"].GetStringValue(), remoteIP(ctx))
	if err != nil {
		return nil, toStatus(s.log, err)
	}
	return newStruct(map[string]any{
		"token":   sess.Token,
		"user_id": sess.User.ID,
		"email":   sess.User.Email,
		"role":    string(sess.User.Role),
	})
}

// WhoAmI echoes the verified claims of the caller.
func (s *Server) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	c, ok := authctx.ClaimsFromCtx(ctx)
	if !ok {
		return nil, toStatus(s.log, errs.ErrNoClaims)
	}
	return newStruct(map[string]any{
		"sub":   c.Subject,
		"email": c.Email,
		"role":  string(c.Role),
		"exp":   c.ExpiresAt,
	})
}

// ListUsers returns one page of users for {page, page_size}.
func (s *Server) ListUsers(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	pg, err := s.users.List(ctx, int(f["page"].GetNumberValue()), int(f["page_size"].GetNumberValue()))
	if err != nil {
		return nil, toStatus(s.log, err)
	}
	users := make([]any, 0, len(pg.Users))
	for _, u := range pg.Users {
		users = append(users, map[string]any{
			"user_id":    u.ID,
			"email":      u.Email,
			"first_name": u.FirstName,
			"last_name":  u.LastName,
			"role":       string(u.Role),
			"is_active":  u.Active,
			"created_at": u.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return newStruct(map[string]any{
		"users":     users,
		"total":     pg.Total,
		"page":      pg.Page,
		"page_size": pg.PageSize,
	})
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}

// toStatus maps service and gate errors to gRPC status errors.
func toStatus(log *zap.Logger, err error) error {
	switch {
	case errors.Is(err, errs.ErrMissingToken):
		return status.Error(codes.Unauthenticated, "missing token")
	case errors.Is(err, errs.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid token")
	case errors.Is(err, errs.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, errs.ErrForbidden):
		return status.Error(codes.PermissionDenied, "admin access required")
	case errors.Is(err, errs.ErrAccountInactive):
		return status.Error(codes.PermissionDenied, "account inactive")
	case errors.Is(err, errs.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "too many login attempts")
	case errors.Is(err, errs.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, errs.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "already exists")
	}
	log.Error("rpc failed", zap.Error(err))
	return status.Error(codes.Internal, "internal")
}
