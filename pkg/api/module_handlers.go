package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lsec-edu/microlearn/pkg/httputil"
	"github.com/lsec-edu/microlearn/pkg/middleware"
	"github.com/lsec-edu/microlearn/pkg/observability"
	"github.com/lsec-edu/microlearn/pkg/roles"
)

// Client-facing module messages
const (
	MsgModuleNotFound = "El modulo no se encontró o no existe"
	MsgModuleSaved    = "Modulo guardado correctamente"
	MsgModuleUpdated  = "Modulo actualizado correctamente"
	MsgModuleDeleted  = "Modulo eliminado correctamente"
	MsgModuleExists   = "El numero o nombre de modulo ya existe"
)

// ModuleHandler serves CRUD on learning modules
type ModuleHandler struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewModuleHandler creates a new module handler
func NewModuleHandler(db *sql.DB, logger *observability.Logger) *ModuleHandler {
	return &ModuleHandler{db: db, logger: logger}
}

// RegisterRoutes registers the module endpoints. Reads require a valid
// token; mutations additionally require the admin role.
func (h *ModuleHandler) RegisterRoutes(r *mux.Router, gate *middleware.Gate) {
	admin := gate.RequireRole(roles.Admin)

	r.Handle("/api/module", gate.VerifyToken(admin(http.HandlerFunc(h.Create)))).Methods(http.MethodPost)
	r.Handle("/api/module", gate.VerifyToken(http.HandlerFunc(h.List))).Methods(http.MethodGet)
	r.Handle("/api/module/{id}", gate.VerifyToken(http.HandlerFunc(h.Get))).Methods(http.MethodGet)
	r.Handle("/api/module/{id}", gate.VerifyToken(admin(http.HandlerFunc(h.Update)))).Methods(http.MethodPut)
	r.Handle("/api/module/{id}", gate.VerifyToken(admin(http.HandlerFunc(h.Delete)))).Methods(http.MethodDelete)
}

type modulePayload struct {
	Number int    `json:"number"`
	Name   string `json:"name"`
}

// Create stores a new module. Number and name are both unique across
// the catalog.
func (h *ModuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req modulePayload
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}
	if req.Number <= 0 || req.Name == "" {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	now := time.Now()
	var id int64
	err := h.db.QueryRowContext(r.Context(), `
		INSERT INTO modules (number, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, req.Number, req.Name, now, now).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			httputil.WriteMessage(w, http.StatusBadRequest, MsgModuleExists)
			return
		}
		h.logger.WithError(err).Error("failed to create module")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"message": MsgModuleSaved,
		"module": Module{
			ID: id, Number: req.Number, Name: req.Name,
			CreatedAt: now, UpdatedAt: now,
		},
	})
}

// List returns all modules ordered by number
func (h *ModuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, number, name, created_at, updated_at
		FROM modules
		ORDER BY number ASC
	`)
	if err != nil {
		h.logger.WithError(err).Error("failed to list modules")
		httputil.WriteInternalError(w, err)
		return
	}
	defer rows.Close()

	modules := make([]Module, 0)
	for rows.Next() {
		var m Module
		if err := rows.Scan(&m.ID, &m.Number, &m.Name, &m.CreatedAt, &m.UpdatedAt); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		modules = append(modules, m)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, modules)
}

// Get returns one module by ID
func (h *ModuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var m Module
	err := h.db.QueryRowContext(r.Context(), `
		SELECT id, number, name, created_at, updated_at
		FROM modules
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Number, &m.Name, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		httputil.WriteNotFoundError(w, MsgModuleNotFound)
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, m)
}

// Update changes a module's number and name
func (h *ModuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req modulePayload
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}
	if req.Number <= 0 || req.Name == "" {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	res, err := h.db.ExecContext(r.Context(), `
		UPDATE modules
		SET number = $1, name = $2, updated_at = $3
		WHERE id = $4
	`, req.Number, req.Name, time.Now(), id)
	if err != nil {
		if isUniqueViolation(err) {
			httputil.WriteMessage(w, http.StatusBadRequest, MsgModuleExists)
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	affected, err := res.RowsAffected()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if affected == 0 {
		httputil.WriteNotFoundError(w, MsgModuleNotFound)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, MsgModuleUpdated)
}

// Delete removes a module; its lessons cascade
func (h *ModuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	res, err := h.db.ExecContext(r.Context(), `DELETE FROM modules WHERE id = $1`, id)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	affected, err := res.RowsAffected()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if affected == 0 {
		httputil.WriteNotFoundError(w, MsgModuleNotFound)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, MsgModuleDeleted)
}
