package api

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/lsec-edu/microlearn/pkg/httputil"
	"github.com/lsec-edu/microlearn/pkg/middleware"
	"github.com/lsec-edu/microlearn/pkg/observability"
	"github.com/lsec-edu/microlearn/pkg/roles"
)

// Client-facing microlearning messages
const (
	MsgMicroNotFound = "El microlearning no se encontró o no existe"
	MsgMicroSaved    = "Microlearning guardado correctamente"
	MsgMicroUpdated  = "Microlearning actualizado correctamente"
	MsgMicroDeleted  = "Microlearning eliminado correctamente"
	MsgImageNotFound = "La imagen no se encontró o no existe"
)

// MicroHandler serves CRUD on microlearning capsules
type MicroHandler struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewMicroHandler creates a new microlearning handler
func NewMicroHandler(db *sql.DB, logger *observability.Logger) *MicroHandler {
	return &MicroHandler{db: db, logger: logger}
}

// RegisterRoutes registers the microlearning endpoints
func (h *MicroHandler) RegisterRoutes(r *mux.Router, gate *middleware.Gate) {
	admin := gate.RequireRole(roles.Admin)

	r.Handle("/api/micro", gate.VerifyToken(admin(http.HandlerFunc(h.Create)))).Methods(http.MethodPost)
	r.Handle("/api/micro", gate.VerifyToken(http.HandlerFunc(h.List))).Methods(http.MethodGet)
	r.Handle("/api/micro/image/{id}", gate.VerifyToken(http.HandlerFunc(h.GetImage))).Methods(http.MethodGet)
	r.Handle("/api/micro/gif/{id}", gate.VerifyToken(http.HandlerFunc(h.GetGif))).Methods(http.MethodGet)
	r.Handle("/api/micro/{id}", gate.VerifyToken(http.HandlerFunc(h.Get))).Methods(http.MethodGet)
	r.Handle("/api/micro/{id}", gate.VerifyToken(admin(http.HandlerFunc(h.Update)))).Methods(http.MethodPut)
	r.Handle("/api/micro/{id}", gate.VerifyToken(admin(http.HandlerFunc(h.Delete)))).Methods(http.MethodDelete)
}

// Create stores a new capsule from a multipart form: title, lesson and
// optional image and gif, each capped at 9MB
func (h *MicroHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxMediaSize); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	title := r.FormValue("title")
	lessonID, err := strconv.ParseInt(r.FormValue("lesson"), 10, 64)
	if title == "" || err != nil || lessonID <= 0 {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	image, imageType, err := readUpload(r, "image", MaxMediaSize)
	if err == errFileTooLarge {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgMediaTooLarge)
		return
	}
	if err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	gif, gifType, err := readUpload(r, "gif", MaxMediaSize)
	if err == errFileTooLarge {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgMediaTooLarge)
		return
	}
	if err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	now := time.Now()
	var id int64
	err = h.db.QueryRowContext(r.Context(), `
		INSERT INTO microlearnings (title, lesson_id, image, image_content_type, gif, gif_content_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, title, lessonID, image, nullString(imageType), gif, nullString(gifType), now, now).Scan(&id)
	if err != nil {
		h.logger.WithError(err).Error("failed to create microlearning")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"message": MsgMicroSaved,
		"micro": Microlearning{
			ID: id, Title: title, LessonID: lessonID,
			ImageContentType: imageType,
			GifContentType:   gifType,
			CreatedAt:        now, UpdatedAt: now,
		},
	})
}

// List returns all capsules without blob bytes, optionally filtered by
// lesson
func (h *MicroHandler) List(w http.ResponseWriter, r *http.Request) {
	query := `
		SELECT id, title, lesson_id, COALESCE(image_content_type, ''),
		       COALESCE(gif_content_type, ''), created_at, updated_at
		FROM microlearnings
		ORDER BY id ASC
	`
	args := []interface{}{}
	if lessonID := httputil.QueryInt(r, "lesson", 0); lessonID > 0 {
		query = `
			SELECT id, title, lesson_id, COALESCE(image_content_type, ''),
			       COALESCE(gif_content_type, ''), created_at, updated_at
			FROM microlearnings
			WHERE lesson_id = $1
			ORDER BY id ASC
		`
		args = append(args, lessonID)
	}

	rows, err := h.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		h.logger.WithError(err).Error("failed to list microlearnings")
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

// Get returns one capsule by ID, without blob bytes
func (h *MicroHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var m Microlearning
	err := h.db.QueryRowContext(r.Context(), `
		SELECT id, title, lesson_id, COALESCE(image_content_type, ''),
		       COALESCE(gif_content_type, ''), created_at, updated_at
		FROM microlearnings
		WHERE id = $1
	`, id).Scan(&m.ID, &m.Title, &m.LessonID, &m.ImageContentType,
		&m.GifContentType, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		httputil.WriteNotFoundError(w, MsgMicroNotFound)
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, m)
}

// serveBlob renders one blob column of a capsule with its content type
func (h *MicroHandler) serveBlob(w http.ResponseWriter, r *http.Request, column, missing string) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var blob []byte
	var contentType sql.NullString
	err := h.db.QueryRowContext(r.Context(), `
		SELECT `+column+`, `+column+`_content_type FROM microlearnings WHERE id = $1
	`, id).Scan(&blob, &contentType)
	if err == sql.ErrNoRows {
		httputil.WriteNotFoundError(w, MsgMicroNotFound)
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if len(blob) == 0 {
		httputil.WriteNotFoundError(w, missing)
		return
	}

	w.Header().Set("Content-Type", contentType.String)
	w.WriteHeader(http.StatusOK)
	w.Write(blob)
}

// GetImage renders the stored image
func (h *MicroHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	h.serveBlob(w, r, "image", MsgImageNotFound)
}

// GetGif renders the stored gif
func (h *MicroHandler) GetGif(w http.ResponseWriter, r *http.Request) {
	h.serveBlob(w, r, "gif", MsgGifNotFound)
}

// Update changes a capsule's title and lesson, replacing blobs only
// when new ones are uploaded
func (h *MicroHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(MaxMediaSize); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	title := r.FormValue("title")
	lessonID, err := strconv.ParseInt(r.FormValue("lesson"), 10, 64)
	if title == "" || err != nil || lessonID <= 0 {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	image, imageType, err := readUpload(r, "image", MaxMediaSize)
	if err == errFileTooLarge {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgMediaTooLarge)
		return
	}
	if err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	gif, gifType, err := readUpload(r, "gif", MaxMediaSize)
	if err == errFileTooLarge {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgMediaTooLarge)
		return
	}
	if err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	res, err := h.db.ExecContext(r.Context(), `
		UPDATE microlearnings
		SET title = $1, lesson_id = $2, updated_at = $3
		WHERE id = $4
	`, title, lessonID, time.Now(), id)
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
		httputil.WriteNotFoundError(w, MsgMicroNotFound)
		return
	}

	if image != nil {
		if _, err := h.db.ExecContext(r.Context(), `
			UPDATE microlearnings SET image = $1, image_content_type = $2 WHERE id = $3
		`, image, nullString(imageType), id); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
	}
	if gif != nil {
		if _, err := h.db.ExecContext(r.Context(), `
			UPDATE microlearnings SET gif = $1, gif_content_type = $2 WHERE id = $3
		`, gif, nullString(gifType), id); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
	}

	httputil.WriteMessage(w, http.StatusOK, MsgMicroUpdated)
}

// Delete removes a capsule; its progress rows cascade
func (h *MicroHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	res, err := h.db.ExecContext(r.Context(), `DELETE FROM microlearnings WHERE id = $1`, id)
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
		httputil.WriteNotFoundError(w, MsgMicroNotFound)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, MsgMicroDeleted)
}
