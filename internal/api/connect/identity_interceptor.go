package connect

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/19room/internal/app/coordinator"
)

const (
	// UserIDHeader identifies the caller. Authentication happens upstream.
	UserIDHeader = "X-User-ID"
	// DisplayNameHeader optionally carries the caller's display name.
	DisplayNameHeader = "X-Display-Name"
)

// Identity is the caller of an RPC.
type Identity struct {
	UserID      string
	DisplayName string
}

type identityKey struct{}

// IdentityFromContext returns the caller stored by the identity interceptor.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func withIdentity(ctx context.Context, header http.Header) (context.Context, error) {
	userID := header.Get(UserIDHeader)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.Newf("%s header is required", UserIDHeader))
	}
	if userID == coordinator.SystemUserID {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.Newf("user id %q is reserved", userID))
	}
	return context.WithValue(ctx, identityKey{}, Identity{
		UserID:      userID,
		DisplayName: header.Get(DisplayNameHeader),
	}), nil
}

// identityInterceptor reads the caller identity from request headers for
// unary and streaming handlers.
type identityInterceptor struct{}

// NewIdentityInterceptor creates the server-side identity interceptor.
func NewIdentityInterceptor() connect.Interceptor {
	return identityInterceptor{}
}

func (identityInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		ctx, err := withIdentity(ctx, req.Header())
		if err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (identityInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (identityInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		ctx, err := withIdentity(ctx, conn.RequestHeader())
		if err != nil {
			return err
		}
		return next(ctx, conn)
	}
}
