package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lsec-edu/microlearn/pkg/httputil"
	"github.com/lsec-edu/microlearn/pkg/middleware"
	"github.com/lsec-edu/microlearn/pkg/observability"
	"github.com/lsec-edu/microlearn/pkg/roles"
	"github.com/lsec-edu/microlearn/pkg/users"
)

// Client-facing user messages
const (
	MsgUserNotFound = "Ningún usuario encontrado"
	MsgUserUpdated  = "Usuario actualizado correctamente"
	MsgUserDeleted  = "Usuario eliminado correctamente"
)

// UserHandler serves account lookup and self-service profile updates
type UserHandler struct {
	store  *users.Store
	svc    *users.Service
	logger *observability.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(store *users.Store, svc *users.Service, logger *observability.Logger) *UserHandler {
	return &UserHandler{store: store, svc: svc, logger: logger}
}

// RegisterRoutes registers the user endpoints. Everything requires a
// valid token; deleting other accounts requires the admin role.
func (h *UserHandler) RegisterRoutes(r *mux.Router, gate *middleware.Gate) {
	admin := gate.RequireRole(roles.Admin)

	r.Handle("/api/users", gate.VerifyToken(http.HandlerFunc(h.List))).Methods(http.MethodGet)
	r.Handle("/api/users/profile", gate.VerifyToken(http.HandlerFunc(h.Profile))).Methods(http.MethodGet)
	r.Handle("/api/users/profile", gate.VerifyToken(http.HandlerFunc(h.UpdateProfile))).Methods(http.MethodPut)
	r.Handle("/api/users/{id}", gate.VerifyToken(http.HandlerFunc(h.Get))).Methods(http.MethodGet)
	r.Handle("/api/users/{id}", gate.VerifyToken(admin(http.HandlerFunc(h.Delete)))).Methods(http.MethodDelete)
}

// List returns all accounts, or the most recent ones when the "new"
// query parameter is present (limit defaults to 10)
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	newest := r.URL.Query().Has("new")
	limit := httputil.QueryInt(r, "limit", 10)

	list, err := h.store.List(r.Context(), newest, limit)
	if err != nil {
		h.logger.WithError(err).Error("failed to list users")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, list)
}

// Get returns one account by ID
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	u, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			httputil.WriteNotFoundError(w, MsgUserNotFound)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, u)
}

// Profile returns the caller's own account
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r)
	if !ok {
		httputil.WriteForbidden(w, middleware.MsgNoToken)
		return
	}

	u, err := h.store.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			httputil.WriteNotFoundError(w, MsgUserNotFound)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, u)
}

type profileUpdateRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password,omitempty"`
	CurrentPassword string `json:"currentPassword,omitempty"`
}

// UpdateProfile changes the caller's name and email, and the password
// when one is provided along with the current one
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r)
	if !ok {
		httputil.WriteForbidden(w, middleware.MsgNoToken)
		return
	}

	var req profileUpdateRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}
	if req.Name == "" || req.Email == "" {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	if req.Password != "" {
		if err := h.svc.ChangePassword(r.Context(), userID, req.CurrentPassword, req.Password); err != nil {
			switch {
			case errors.Is(err, users.ErrBadCredentials):
				httputil.WriteUnauthorized(w, MsgBadCredentials)
			case errors.Is(err, users.ErrNotFound):
				httputil.WriteNotFoundError(w, MsgUserNotFound)
			default:
				httputil.WriteInternalError(w, err)
			}
			return
		}
	}

	u, err := h.store.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			httputil.WriteNotFoundError(w, MsgUserNotFound)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	u.Name = req.Name
	u.Email = req.Email
	if err := h.store.Update(r.Context(), u); err != nil {
		if errors.Is(err, users.ErrDuplicateEmail) {
			httputil.WriteMessage(w, http.StatusBadRequest, MsgEmailExists)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, MsgUserUpdated)
}

// Delete removes an account. Reached only through the admin gate.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			httputil.WriteNotFoundError(w, MsgUserNotFound)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, MsgUserDeleted)
}
