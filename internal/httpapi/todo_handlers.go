package httpapi

import (
	"fmt"
	"net/http"

	"todopad.org/internal/audit"
	"todopad.org/internal/auth"
	"todopad.org/internal/todo"
)

func (a *API) handleTodosCollection(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		a.listTodos(w, r, userID)
	case http.MethodPost:
		a.createTodos(w, r, userID)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTodoResource(w http.ResponseWriter, r *http.Request, userID, todoID string) {
	switch r.Method {
	case http.MethodPatch:
		a.patchTodo(w, r, userID, todoID)
	case http.MethodDelete:
		a.deleteTodo(w, r, userID, todoID)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) listTodos(w http.ResponseWriter, r *http.Request, userID string) {
	if !a.ensurePermission(w, r, auth.PermReadOwnTodos) {
		return
	}
	if !a.ensureOwner(w, r, userID) {
		return
	}
	todos, err := a.store.ListTodos(r.Context(), userID)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"todos":   todos,
	})
}

// createTodos accepts a JSON array so a client can create a batch in one
// request. The batch is all-or-nothing.
func (a *API) createTodos(w http.ResponseWriter, r *http.Request, userID string) {
	if !a.ensurePermission(w, r, auth.PermWriteOwnTodos) {
		return
	}
	if !a.ensureOwner(w, r, userID) {
		return
	}
	if !requireJSON(w, r) {
		return
	}
	var inputs []todo.TodoInput
	if err := decodeJSON(r, &inputs); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(inputs) == 0 {
		writeError(w, r, http.StatusBadRequest, "at least one todo is required")
		return
	}
	for i, in := range inputs {
		if err := a.validate.Struct(in); err != nil {
			writeError(w, r, http.StatusBadRequest, fmt.Sprintf("todo %d: %s", i, validationMessage(err)))
			return
		}
	}
	todos, err := a.store.CreateTodos(r.Context(), userID, inputs)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "todos.created", map[string]any{"user_id": userID, "count": len(todos)})
	writeSuccess(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"todos":   todos,
	})
}

func (a *API) patchTodo(w http.ResponseWriter, r *http.Request, userID, todoID string) {
	if !a.ensurePermission(w, r, auth.PermWriteOwnTodos) {
		return
	}
	if !a.ensureOwner(w, r, userID) {
		return
	}
	var patch todo.TodoPatch
	if !a.decodeValid(w, r, &patch) {
		return
	}
	if patch.IsEmpty() {
		writeError(w, r, http.StatusBadRequest, "at least one of title, done must be provided")
		return
	}
	t, err := a.store.UpdateTodo(r.Context(), userID, todoID, patch)
	if err != nil {
		handleStoreError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "todo.updated", map[string]any{"todo_id": t.ID})
	writeSuccess(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"todo":    t,
	})
}

func (a *API) deleteTodo(w http.ResponseWriter, r *http.Request, userID, todoID string) {
	if !a.ensurePermission(w, r, auth.PermWriteOwnTodos) {
		return
	}
	if !a.ensureOwner(w, r, userID) {
		return
	}
	if err := a.store.DeleteTodo(r.Context(), userID, todoID); err != nil {
		handleStoreError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "todo.deleted", map[string]any{"todo_id": todoID})
	writeSuccess(w, http.StatusOK, map[string]any{"deleted": todoID})
}
