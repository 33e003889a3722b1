package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"

	// UserIDHeader is the metadata key the gateway forwards the caller in.
	UserIDHeader = "x-user-id"
)

// WithUserID stores the acting user on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the acting user, checking the context set by the
// interceptor first and falling back to incoming metadata.
func GetUserID(ctx context.Context) string {
	if val, ok := ctx.Value(userIDKey).(string); ok {
		return val
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val := md.Get(UserIDHeader); len(val) > 0 {
			return val[0]
		}
	}
	return ""
}

// UnaryServerInterceptor copies x-user-id from metadata into the context.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if val := md.Get(UserIDHeader); len(val) > 0 && val[0] != "" {
				ctx = WithUserID(ctx, val[0])
			}
		}
		return handler(ctx, req)
	}
}
