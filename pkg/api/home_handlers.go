package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lsec-edu/microlearn/pkg/httputil"
	"github.com/lsec-edu/microlearn/pkg/middleware"
	"github.com/lsec-edu/microlearn/pkg/observability"
)

// HomeHandler serves the read-only views the client landing screens
// are built from. Blob columns are never selected here.
type HomeHandler struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewHomeHandler creates a new home handler
func NewHomeHandler(db *sql.DB, logger *observability.Logger) *HomeHandler {
	return &HomeHandler{db: db, logger: logger}
}

// RegisterRoutes registers the home endpoints
func (h *HomeHandler) RegisterRoutes(r *mux.Router, gate *middleware.Gate) {
	r.Handle("/api/home/modules", gate.VerifyToken(http.HandlerFunc(h.Modules))).Methods(http.MethodGet)
	r.Handle("/api/home/lessons/{moduleId}", gate.VerifyToken(http.HandlerFunc(h.Lessons))).Methods(http.MethodGet)
	r.Handle("/api/home/micro/{lessonId}", gate.VerifyToken(http.HandlerFunc(h.Micros))).Methods(http.MethodGet)
}

// Modules returns the modules that have at least one lesson, ordered
// by number
func (h *HomeHandler) Modules(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `
		SELECT DISTINCT m.id, m.number, m.name, m.created_at, m.updated_at
		FROM modules m
		JOIN lessons l ON l.module_id = m.id
		ORDER BY m.number ASC
	`)
	if err != nil {
		h.logger.WithError(err).Error("failed to load home modules")
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

// Lessons returns the lessons of one module
func (h *HomeHandler) Lessons(w http.ResponseWriter, r *http.Request) {
	moduleID, ok := httputil.ParsePathInt64OrError(w, r, "moduleId")
	if !ok {
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, name, module_id, COALESCE(icon_content_type, ''), created_at, updated_at
		FROM lessons
		WHERE module_id = $1
		ORDER BY id ASC
	`, moduleID)
	if err != nil {
		h.logger.WithError(err).Error("failed to load home lessons")
		httputil.WriteInternalError(w, err)
		return
	}
	defer rows.Close()

	lessons := make([]Lesson, 0)
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.Name, &l.ModuleID, &l.IconContentType, &l.CreatedAt, &l.UpdatedAt); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		lessons = append(lessons, l)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, lessons)
}

// Micros returns the capsules of one lesson
func (h *HomeHandler) Micros(w http.ResponseWriter, r *http.Request) {
	lessonID, ok := httputil.ParsePathInt64OrError(w, r, "lessonId")
	if !ok {
		return
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, title, lesson_id, COALESCE(image_content_type, ''),
		       COALESCE(gif_content_type, ''), created_at, updated_at
		FROM microlearnings
		WHERE lesson_id = $1
		ORDER BY id ASC
	`, lessonID)
	if err != nil {
		h.logger.WithError(err).Error("failed to load home capsules")
		httputil.WriteInternalError(w, err)
		return
	}
	defer rows.Close()

	micros := make([]Microlearning, 0)
	for rows.Next() {
		var m Microlearning
		if err := rows.Scan(&m.ID, &m.Title, &m.LessonID, &m.ImageContentType,
			&m.GifContentType, &m.CreatedAt, &m.UpdatedAt); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		micros = append(micros, m)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, micros)
}
