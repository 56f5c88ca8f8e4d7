package testutil

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"intranet/pkg/requestcontext"
)

// WithPrincipal attaches an authenticated caller to the request, as the auth
// middleware would.
func WithPrincipal(req *http.Request, userID uuid.UUID, role string) *http.Request {
	ctx := requestcontext.WithPrincipal(req.Context(), requestcontext.Principal{
		UserID:  userID,
		Role:    role,
		TokenID: uuid.NewString(),
	})
	return req.WithContext(ctx)
}

// AdminContext returns a context for an admin caller with a fresh user ID.
func AdminContext() (context.Context, uuid.UUID) {
	id := uuid.New()
	return requestcontext.WithPrincipal(context.Background(), requestcontext.Principal{
		UserID: id,
		Email:  "admin@example.com",
		Name:   "Admin",
		Role:   "admin",
	}), id
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
