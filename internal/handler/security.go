package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/basmalabs/storefront/internal/domain/auth"
)

// APIKeyHeader carries the client's API key.
const APIKeyHeader = "X-API-Key"

type identityKey struct{}

// IdentityFromContext returns the verified caller set by Authenticate.
func IdentityFromContext(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*auth.Identity)
	return id, ok
}

// Authenticate verifies the API key by computing its HMAC-SHA256 under the
// configured pepper, resolving the identity by that hash, and performing a
// constant-time comparison against the stored hash. The verified identity is
// stored in the request context.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			respond(w, http.StatusUnauthorized, envelope{Message: "missing API key"})
			return
		}

		mac := hmac.New(sha256.New, h.cfg.APIKeyPepper)
		mac.Write([]byte(key))
		hash := mac.Sum(nil)

		identity, err := h.identities.FindByKeyHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			respond(w, http.StatusUnauthorized, envelope{Message: "unauthorized"})
			return
		}

		// Constant-time comparison guards against timing side-channels even
		// though the lookup already succeeded.
		stored, err := hex.DecodeString(identity.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			respond(w, http.StatusUnauthorized, envelope{Message: "unauthorized"})
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
