package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/bistro-backend/api/responses"
	pkgerrors "github.com/angelmondragon/bistro-backend/pkg/errors"
	"github.com/angelmondragon/bistro-backend/pkg/logger"
)

// actorHeader is set by the upstream gateway once the staff member is authenticated.
const actorHeader = "X-User-Id"

type contextKey string

const ctxUserID contextKey = "user_id"

// UserIDFromContext returns the acting staff member, if any.
func UserIDFromContext(ctx context.Context) *uint {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxUserID).(uint); ok {
		return &v
	}
	return nil
}

// WithUserID injects the acting staff member into the context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// Actor reads the optional X-User-Id header used for ledger attribution.
// A malformed value is rejected rather than silently dropped.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(actorHeader))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			id, err := strconv.ParseUint(raw, 10, 32)
			if err != nil || id == 0 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "X-User-Id must be a positive integer"))
				return
			}
			ctx := WithUserID(r.Context(), uint(id))
			if logg != nil {
				ctx = logg.WithUserID(ctx, raw)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
