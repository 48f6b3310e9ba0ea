package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"todopad.org/internal/audit"
	"todopad.org/internal/auth"
	"todopad.org/internal/todo"
)

func (a *API) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listUsers(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet)
	}
}

// handleUserScoped dispatches /api/v1/users/{id}[/todos[/{todoID}]].
func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, basePath+"/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleUserResource(w, r, userID)
	case len(parts) == 2 && parts[1] == "todos":
		a.handleTodosCollection(w, r, userID)
	case len(parts) == 3 && parts[1] == "todos":
		a.handleTodoResource(w, r, userID, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		a.getUser(w, r, userID)
	case http.MethodPut:
		a.createUser(w, r, userID)
	case http.MethodPatch:
		a.patchUser(w, r, userID)
	case http.MethodDelete:
		a.deleteUser(w, r, userID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete)
	}
}

// listUsers is the only all-scoped operation: read:all-users widens access
// to every profile, and nothing else is ever exempt from ownership checks.
func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	if !a.ensurePermission(w, r, auth.PermReadAllUsers) {
		return
	}
	users, err := a.store.ListUsers(r.Context())
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request, userID string) {
	if !a.ensurePermission(w, r, auth.PermReadOwnUser) {
		return
	}
	if !a.ensureOwner(w, r, userID) {
		return
	}
	u, err := a.store.GetUser(r.Context(), userID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"user": u})
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request, userID string) {
	if !a.ensurePermission(w, r, auth.PermWriteOwnUser) {
		return
	}
	if !a.ensureOwner(w, r, userID) {
		return
	}
	var input todo.UserInput
	if !a.decodeValid(w, r, &input) {
		return
	}
	u, err := a.store.CreateUser(r.Context(), userID, input)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.created", map[string]any{"user_id": u.ID})
	w.Header().Set("Location", basePath+"/users/"+u.ID)
	writeSuccess(w, http.StatusCreated, map[string]any{"user": u})
}

func (a *API) patchUser(w http.ResponseWriter, r *http.Request, userID string) {
	if !a.ensurePermission(w, r, auth.PermWriteOwnUser) {
		return
	}
	if !a.ensureOwner(w, r, userID) {
		return
	}
	var patch todo.UserPatch
	if !a.decodeValid(w, r, &patch) {
		return
	}
	if patch.IsEmpty() {
		writeError(w, r, http.StatusBadRequest, "at least one of name, email must be provided")
		return
	}
	u, err := a.store.UpdateUser(r.Context(), userID, patch)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.updated", map[string]any{"user_id": u.ID})
	writeSuccess(w, http.StatusOK, map[string]any{"user": u})
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request, userID string) {
	if !a.ensurePermission(w, r, auth.PermWriteOwnUser) {
		return
	}
	if !a.ensureOwner(w, r, userID) {
		return
	}
	if err := a.store.DeleteUser(r.Context(), userID); err != nil {
		handleStoreError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "user.deleted", map[string]any{"user_id": userID})
	writeSuccess(w, http.StatusOK, map[string]any{"deleted": userID})
}

// --- shared request helpers ---

// decodeValid decodes a JSON body and runs struct validation, writing the
// 415/400 response itself on failure.
func (a *API) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !requireJSON(w, r) {
		return false
	}
	if err := decodeJSON(r, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return false
	}
	if err := a.validate.Struct(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt == "application/json" {
			return true
		}
	}
	writeError(w, r, http.StatusUnsupportedMediaType, "request body must be application/json")
	return false
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("request body is not valid JSON for this operation")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// validationMessage enumerates the offending field names.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request payload"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, strings.ToLower(fe.Field()))
	}
	return "invalid fields: " + strings.Join(fields, ", ")
}

func handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, todo.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, todo.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, todo.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
