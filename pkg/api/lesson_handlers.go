package api

import (
	"database/sql"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lsec-edu/microlearn/pkg/httputil"
	"github.com/lsec-edu/microlearn/pkg/middleware"
	"github.com/lsec-edu/microlearn/pkg/observability"
	"github.com/lsec-edu/microlearn/pkg/roles"
)

// Client-facing lesson messages
const (
	MsgLessonNotFound = "La lección no se encontró o no existe"
	MsgLessonSaved    = "Lección guardada correctamente"
	MsgLessonUpdated  = "Lección actualizada correctamente"
	MsgLessonDeleted  = "Lección eliminada correctamente"
	MsgIconNotFound   = "El icono no se encontró o no existe"
	MsgIconTooLarge   = "El icono supera el tamaño máximo de 1MB"
	MsgMediaTooLarge  = "El archivo supera el tamaño máximo de 9MB"
)

// lessonSortColumns whitelists the sortBy query values. Anything else
// falls back to id so user input never reaches the ORDER BY clause.
var lessonSortColumns = map[string]string{
	"id":      "id",
	"name":    "name",
	"created": "created_at",
}

// LessonHandler serves CRUD on lessons, including the icon blob
type LessonHandler struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewLessonHandler creates a new lesson handler
func NewLessonHandler(db *sql.DB, logger *observability.Logger) *LessonHandler {
	return &LessonHandler{db: db, logger: logger}
}

// RegisterRoutes registers the lesson endpoints
func (h *LessonHandler) RegisterRoutes(r *mux.Router, gate *middleware.Gate) {
	admin := gate.RequireRole(roles.Admin)

	r.Handle("/api/lesson", gate.VerifyToken(admin(http.HandlerFunc(h.Create)))).Methods(http.MethodPost)
	r.Handle("/api/lesson", gate.VerifyToken(http.HandlerFunc(h.List))).Methods(http.MethodGet)
	r.Handle("/api/lesson/icon/{id}", gate.VerifyToken(http.HandlerFunc(h.GetIcon))).Methods(http.MethodGet)
	r.Handle("/api/lesson/{id}", gate.VerifyToken(http.HandlerFunc(h.Get))).Methods(http.MethodGet)
	r.Handle("/api/lesson/{id}", gate.VerifyToken(admin(http.HandlerFunc(h.Update)))).Methods(http.MethodPut)
	r.Handle("/api/lesson/{id}", gate.VerifyToken(admin(http.HandlerFunc(h.Delete)))).Methods(http.MethodDelete)
}

// readUpload pulls an optional file field out of a parsed multipart
// form, enforcing the size cap. A missing field returns nil bytes and
// no error.
func readUpload(r *http.Request, field string, limit int64) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	if header.Size > limit {
		return nil, "", errFileTooLarge
	}

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > limit {
		return nil, "", errFileTooLarge
	}

	return data, uploadContentType(header, data), nil
}

// uploadContentType prefers the declared content type and falls back
// to sniffing the payload
func uploadContentType(header *multipart.FileHeader, data []byte) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return http.DetectContentType(data)
}

// Create stores a new lesson from a multipart form: name, module and
// an optional icon capped at 1MB
func (h *LessonHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxIconSize); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	name := r.FormValue("name")
	moduleID, err := strconv.ParseInt(r.FormValue("module"), 10, 64)
	if name == "" || err != nil || moduleID <= 0 {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	icon, iconType, err := readUpload(r, "icon", MaxIconSize)
	if err == errFileTooLarge {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgIconTooLarge)
		return
	}
	if err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	now := time.Now()
	var id int64
	err = h.db.QueryRowContext(r.Context(), `
		INSERT INTO lessons (name, module_id, icon, icon_content_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, name, moduleID, icon, nullString(iconType), now, now).Scan(&id)
	if err != nil {
		h.logger.WithError(err).Error("failed to create lesson")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"message": MsgLessonSaved,
		"lesson": Lesson{
			ID: id, Name: name, ModuleID: moduleID,
			IconContentType: iconType,
			CreatedAt:       now, UpdatedAt: now,
		},
	})
}

// List returns lessons without blob bytes. sortBy and order query
// parameters control ordering; unknown values fall back to id asc.
func (h *LessonHandler) List(w http.ResponseWriter, r *http.Request) {
	column, ok := lessonSortColumns[httputil.QueryString(r, "sortBy", "id")]
	if !ok {
		column = "id"
	}
	direction := "ASC"
	if httputil.QueryString(r, "order", "asc") == "desc" {
		direction = "DESC"
	}

	rows, err := h.db.QueryContext(r.Context(), `
		SELECT id, name, module_id, COALESCE(icon_content_type, ''), created_at, updated_at
		FROM lessons
		ORDER BY `+column+` `+direction)
	if err != nil {
		h.logger.WithError(err).Error("failed to list lessons")
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

// Get returns one lesson by ID, without blob bytes
func (h *LessonHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var l Lesson
	err := h.db.QueryRowContext(r.Context(), `
		SELECT id, name, module_id, COALESCE(icon_content_type, ''), created_at, updated_at
		FROM lessons
		WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.ModuleID, &l.IconContentType, &l.CreatedAt, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		httputil.WriteNotFoundError(w, MsgLessonNotFound)
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, l)
}

// GetIcon renders the stored icon with its content type
func (h *LessonHandler) GetIcon(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var icon []byte
	var contentType sql.NullString
	err := h.db.QueryRowContext(r.Context(), `
		SELECT icon, icon_content_type FROM lessons WHERE id = $1
	`, id).Scan(&icon, &contentType)
	if err == sql.ErrNoRows {
		httputil.WriteNotFoundError(w, MsgLessonNotFound)
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if len(icon) == 0 {
		httputil.WriteNotFoundError(w, MsgIconNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType.String)
	w.WriteHeader(http.StatusOK)
	w.Write(icon)
}

// Update changes a lesson's name and module, and replaces the icon
// when a new one is uploaded
func (h *LessonHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(MaxIconSize); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	name := r.FormValue("name")
	moduleID, err := strconv.ParseInt(r.FormValue("module"), 10, 64)
	if name == "" || err != nil || moduleID <= 0 {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	icon, iconType, err := readUpload(r, "icon", MaxIconSize)
	if err == errFileTooLarge {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgIconTooLarge)
		return
	}
	if err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	var res sql.Result
	if icon != nil {
		res, err = h.db.ExecContext(r.Context(), `
			UPDATE lessons
			SET name = $1, module_id = $2, icon = $3, icon_content_type = $4, updated_at = $5
			WHERE id = $6
		`, name, moduleID, icon, nullString(iconType), time.Now(), id)
	} else {
		res, err = h.db.ExecContext(r.Context(), `
			UPDATE lessons
			SET name = $1, module_id = $2, updated_at = $3
			WHERE id = $4
		`, name, moduleID, time.Now(), id)
	}
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
		httputil.WriteNotFoundError(w, MsgLessonNotFound)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, MsgLessonUpdated)
}

// Delete removes a lesson; cards, capsules and progress rows cascade
func (h *LessonHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	res, err := h.db.ExecContext(r.Context(), `DELETE FROM lessons WHERE id = $1`, id)
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
		httputil.WriteNotFoundError(w, MsgLessonNotFound)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, MsgLessonDeleted)
}
