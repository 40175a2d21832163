package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lsec-edu/microlearn/pkg/httputil"
	"github.com/lsec-edu/microlearn/pkg/observability"
	"github.com/lsec-edu/microlearn/pkg/roles"
	"github.com/lsec-edu/microlearn/pkg/users"
)

// Client-facing messages for the signup/signin flows. The web client
// matches on these strings.
const (
	MsgFieldError     = "Verifique los campos, hubo un error"
	MsgEmailExists    = "El correo electrónico ya existe"
	MsgEmailNotFound  = "El usuario con ese correo electrónico no existe"
	MsgBadCredentials = "El correo electrónico o la contraseña no coinciden"
	MsgUserRegistered = "Usuario registrado correctamente"
	MsgSessionClosed  = "Sesión cerrada correctamente"
)

// AuthHandler serves the signup, signin and signout endpoints
type AuthHandler struct {
	svc     *users.Service
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *users.Service, logger *observability.Logger, metrics *observability.Metrics) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger, metrics: metrics}
}

// RegisterRoutes registers the auth endpoints. They are public: the
// token gate never runs in front of them.
func (h *AuthHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/auth/signup", h.Signup).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/signin", h.Signin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/signout", h.Signout).Methods(http.MethodGet)
}

func (h *AuthHandler) countSignup(status string) {
	if h.metrics != nil {
		h.metrics.SignupsTotal.WithLabelValues(status).Inc()
	}
}

func (h *AuthHandler) countSignin(status string) {
	if h.metrics != nil {
		h.metrics.SigninsTotal.WithLabelValues(status).Inc()
	}
}

// Signup registers a new account. Validation failures and duplicate
// emails answer under the "message" key.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req users.SignupRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		h.countSignup("invalid")
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	u, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		var unknownRole *roles.UnknownRoleError
		switch {
		case errors.Is(err, users.ErrValidation):
			h.countSignup("invalid")
			httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		case errors.Is(err, users.ErrDuplicateEmail):
			h.countSignup("duplicate")
			httputil.WriteMessage(w, http.StatusBadRequest, MsgEmailExists)
		case errors.As(err, &unknownRole):
			h.countSignup("invalid")
			httputil.WriteMessage(w, http.StatusBadRequest,
				"El Rol "+unknownRole.Name+" no existe")
		default:
			h.countSignup("error")
			h.logger.WithError(err).Error("signup failed")
			httputil.WriteInternalError(w, err)
		}
		return
	}

	h.countSignup("ok")
	h.logger.WithField("user_id", u.ID).Info("user registered")
	httputil.WriteSuccess(w, map[string]interface{}{
		"message": MsgUserRegistered,
		"user":    u,
	})
}

// SigninRequest carries the credentials presented at signin
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signin verifies credentials and answers with a fresh token. An
// unknown email and a wrong password are phrased differently, under
// the "error" key.
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		h.countSignin("invalid")
		httputil.WriteBadRequest(w, MsgFieldError)
		return
	}

	u, token, err := h.svc.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			h.countSignin("unknown_email")
			httputil.WriteErrorMessage(w, http.StatusBadRequest, MsgEmailNotFound)
		case errors.Is(err, users.ErrBadCredentials):
			h.countSignin("bad_password")
			httputil.WriteUnauthorized(w, MsgBadCredentials)
		default:
			h.countSignin("error")
			h.logger.WithError(err).Error("signin failed")
			httputil.WriteInternalError(w, err)
		}
		return
	}

	h.countSignin("ok")
	w.Header().Set("auth-token", token)
	httputil.WriteSuccess(w, map[string]interface{}{
		"token": token,
		"user":  u,
	})
}

// Signout acknowledges session close. Tokens are stateless, so the
// client discards its copy; nothing is revoked server side.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	httputil.WriteMessage(w, http.StatusOK, MsgSessionClosed)
}
