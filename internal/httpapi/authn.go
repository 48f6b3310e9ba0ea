package httpapi

import (
	"errors"
	"net/http"
	"todopad.org/internal/auth"
)

const authHeader = "Authorization"

var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
}

// withAuth verifies the bearer token on every API route and stores the
// decoded claims in the request context. Verification failures end the
// request here with 401; permission checks happen per operation.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a == nil || a.verifier == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := auth.ExtractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeAuthError(w, r, err)
			return
		}

		claims, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			writeAuthError(w, r, err)
			return
		}

		ctx := auth.ContextWithClaims(r.Context(), claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensurePermission aborts with 403 when the token lacks the required
// permission. Returns true when the request may proceed.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, perm string) bool {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeErrorKind(w, r, http.StatusUnauthorized, string(auth.KindInvalidToken), "request is not authenticated")
		return false
	}
	if !claims.HasPermission(perm) {
		writeErrorKind(w, r, http.StatusForbidden,
			string(auth.KindInsufficientPermissions),
			"token does not include the "+perm+" permission")
		return false
	}
	return true
}

// ensureOwner enforces the ownership scope: the path's user id must be the
// token subject. A mismatch reads as absence, never as forbidden, so the
// existence of other users' records is not disclosed.
func (a *API) ensureOwner(w http.ResponseWriter, r *http.Request, userID string) bool {
	subject, ok := auth.SubjectFromContext(r.Context())
	if !ok {
		writeErrorKind(w, r, http.StatusUnauthorized, string(auth.KindInvalidToken), "request is not authenticated")
		return false
	}
	if subject != userID {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return false
	}
	return true
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		status := http.StatusUnauthorized
		if authErr.IsAuthorization() {
			status = http.StatusForbidden
		}
		writeErrorKind(w, r, status, string(authErr.Kind), authErr.Message)
		return
	}
	writeError(w, r, http.StatusInternalServerError, "authentication error")
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
