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

// Client-facing progress messages
const (
	MsgProgressSaved = "Progreso guardado correctamente"
)

// ProgressHandler records and reports per-user completion of lessons
// and capsules
type ProgressHandler struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(db *sql.DB, logger *observability.Logger) *ProgressHandler {
	return &ProgressHandler{db: db, logger: logger}
}

// RegisterRoutes registers the progress endpoints. The aggregate view
// is moderator-gated; everything else applies to the caller only.
func (h *ProgressHandler) RegisterRoutes(r *mux.Router, gate *middleware.Gate) {
	moderator := gate.RequireRole(roles.Moderator)

	r.Handle("/api/progress/lesson/{id}", gate.VerifyToken(http.HandlerFunc(h.CompleteLesson))).Methods(http.MethodPost)
	r.Handle("/api/progress/micro/{id}", gate.VerifyToken(http.HandlerFunc(h.CompleteMicro))).Methods(http.MethodPost)
	r.Handle("/api/progress/all", gate.VerifyToken(moderator(http.HandlerFunc(h.All)))).Methods(http.MethodGet)
	r.Handle("/api/progress", gate.VerifyToken(http.HandlerFunc(h.Mine))).Methods(http.MethodGet)
}

// markComplete upserts one completion row. Repeating a completion is a
// no-op: the first completion time is kept.
func (h *ProgressHandler) markComplete(w http.ResponseWriter, r *http.Request, table, refColumn, notFoundMsg string) {
	userID, ok := middleware.UserIDFromContext(r)
	if !ok {
		httputil.WriteForbidden(w, middleware.MsgNoToken)
		return
	}

	refID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	res, err := h.db.ExecContext(r.Context(), `
		INSERT INTO `+table+` (user_id, `+refColumn+`, completed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, `+refColumn+`) DO NOTHING
	`, userID, refID, time.Now())
	if err != nil {
		// A foreign key violation means the lesson or capsule is gone.
		if isForeignKeyViolation(err) {
			httputil.WriteNotFoundError(w, notFoundMsg)
			return
		}
		h.logger.WithError(err).Error("failed to record progress")
		httputil.WriteInternalError(w, err)
		return
	}

	if _, err := res.RowsAffected(); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, MsgProgressSaved)
}

// CompleteLesson marks a lesson as completed by the caller
func (h *ProgressHandler) CompleteLesson(w http.ResponseWriter, r *http.Request) {
	h.markComplete(w, r, "lesson_progress", "lesson_id", MsgLessonNotFound)
}

// CompleteMicro marks a capsule as completed by the caller
func (h *ProgressHandler) CompleteMicro(w http.ResponseWriter, r *http.Request) {
	h.markComplete(w, r, "microlearning_progress", "microlearning_id", MsgMicroNotFound)
}

// progressForUser collects both completion kinds for one user,
// completions first by recency
func (h *ProgressHandler) progressForUser(r *http.Request, userID int64) ([]ProgressEntry, error) {
	rows, err := h.db.QueryContext(r.Context(), `
		SELECT user_id, 'lesson' AS kind, lesson_id AS ref_id, completed_at
		FROM lesson_progress
		WHERE user_id = $1
		UNION ALL
		SELECT user_id, 'micro' AS kind, microlearning_id AS ref_id, completed_at
		FROM microlearning_progress
		WHERE user_id = $2
		ORDER BY completed_at DESC
	`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanProgress(rows)
}

func scanProgress(rows *sql.Rows) ([]ProgressEntry, error) {
	entries := make([]ProgressEntry, 0)
	for rows.Next() {
		var e ProgressEntry
		if err := rows.Scan(&e.UserID, &e.Kind, &e.RefID, &e.CompletedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Mine returns the caller's own progress
func (h *ProgressHandler) Mine(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r)
	if !ok {
		httputil.WriteForbidden(w, middleware.MsgNoToken)
		return
	}

	entries, err := h.progressForUser(r, userID)
	if err != nil {
		h.logger.WithError(err).Error("failed to load progress")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, entries)
}

// All returns every user's progress. Reached only through the
// moderator gate.
func (h *ProgressHandler) All(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.QueryContext(r.Context(), `
		SELECT user_id, 'lesson' AS kind, lesson_id AS ref_id, completed_at
		FROM lesson_progress
		UNION ALL
		SELECT user_id, 'micro' AS kind, microlearning_id AS ref_id, completed_at
		FROM microlearning_progress
		ORDER BY completed_at DESC
	`)
	if err != nil {
		h.logger.WithError(err).Error("failed to load all progress")
		httputil.WriteInternalError(w, err)
		return
	}
	defer rows.Close()

	entries, err := scanProgress(rows)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, entries)
}
