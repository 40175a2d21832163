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

// Client-facing card messages
const (
	MsgCardNotFound = "La tarjeta no se encontró o no existe"
	MsgCardSaved    = "Tarjeta guardada correctamente"
	MsgCardUpdated  = "Tarjeta actualizada correctamente"
	MsgCardDeleted  = "Tarjeta eliminada correctamente"
	MsgGifNotFound  = "El gif no se encontró o no existe"
	MsgGifUpdated   = "Gif actualizado correctamente"
)

// CardHandler serves CRUD on knowledge cards
type CardHandler struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewCardHandler creates a new card handler
func NewCardHandler(db *sql.DB, logger *observability.Logger) *CardHandler {
	return &CardHandler{db: db, logger: logger}
}

// RegisterRoutes registers the card endpoints
func (h *CardHandler) RegisterRoutes(r *mux.Router, gate *middleware.Gate) {
	admin := gate.RequireRole(roles.Admin)

	r.Handle("/api/card", gate.VerifyToken(admin(http.HandlerFunc(h.Create)))).Methods(http.MethodPost)
	r.Handle("/api/card", gate.VerifyToken(http.HandlerFunc(h.List))).Methods(http.MethodGet)
	r.Handle("/api/card/gif/{id}", gate.VerifyToken(http.HandlerFunc(h.GetGif))).Methods(http.MethodGet)
	r.Handle("/api/card/gif/{id}", gate.VerifyToken(admin(http.HandlerFunc(h.UpdateGif)))).Methods(http.MethodPut)
	r.Handle("/api/card/{id}", gate.VerifyToken(http.HandlerFunc(h.Get))).Methods(http.MethodGet)
	r.Handle("/api/card/{id}", gate.VerifyToken(admin(http.HandlerFunc(h.Update)))).Methods(http.MethodPut)
	r.Handle("/api/card/{id}", gate.VerifyToken(admin(http.HandlerFunc(h.Delete)))).Methods(http.MethodDelete)
}

// parseCardForm pulls the card fields out of a multipart form
func parseCardForm(r *http.Request) (question, correct, wrong string, lessonID int64, ok bool) {
	question = r.FormValue("question")
	correct = r.FormValue("correctAnswer")
	wrong = r.FormValue("wrongAnswer")
	lessonID, err := strconv.ParseInt(r.FormValue("lesson"), 10, 64)
	if question == "" || correct == "" || wrong == "" || err != nil || lessonID <= 0 {
		return "", "", "", 0, false
	}
	return question, correct, wrong, lessonID, true
}

// Create stores a new card from a multipart form with an optional gif
// capped at 9MB
func (h *CardHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxMediaSize); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	question, correct, wrong, lessonID, ok := parseCardForm(r)
	if !ok {
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
		INSERT INTO cards (question, correct_answer, wrong_answer, lesson_id, gif, gif_content_type, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, question, correct, wrong, lessonID, gif, nullString(gifType), now, now).Scan(&id)
	if err != nil {
		h.logger.WithError(err).Error("failed to create card")
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"message": MsgCardSaved,
		"card": Card{
			ID: id, Question: question, CorrectAnswer: correct,
			WrongAnswer: wrong, LessonID: lessonID,
			GifContentType: gifType,
			CreatedAt:      now, UpdatedAt: now,
		},
	})
}

// List returns all cards without blob bytes, optionally filtered by
// lesson
func (h *CardHandler) List(w http.ResponseWriter, r *http.Request) {
	query := `
		SELECT id, question, correct_answer, wrong_answer, lesson_id,
		       COALESCE(gif_content_type, ''), created_at, updated_at
		FROM cards
		ORDER BY id ASC
	`
	args := []interface{}{}
	if lessonID := httputil.QueryInt(r, "lesson", 0); lessonID > 0 {
		query = `
			SELECT id, question, correct_answer, wrong_answer, lesson_id,
			       COALESCE(gif_content_type, ''), created_at, updated_at
			FROM cards
			WHERE lesson_id = $1
			ORDER BY id ASC
		`
		args = append(args, lessonID)
	}

	rows, err := h.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		h.logger.WithError(err).Error("failed to list cards")
		httputil.WriteInternalError(w, err)
		return
	}
	defer rows.Close()

	cards := make([]Card, 0)
	for rows.Next() {
		var c Card
		if err := rows.Scan(&c.ID, &c.Question, &c.CorrectAnswer, &c.WrongAnswer,
			&c.LessonID, &c.GifContentType, &c.CreatedAt, &c.UpdatedAt); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, cards)
}

// Get returns one card by ID, without blob bytes
func (h *CardHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var c Card
	err := h.db.QueryRowContext(r.Context(), `
		SELECT id, question, correct_answer, wrong_answer, lesson_id,
		       COALESCE(gif_content_type, ''), created_at, updated_at
		FROM cards
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Question, &c.CorrectAnswer, &c.WrongAnswer,
		&c.LessonID, &c.GifContentType, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		httputil.WriteNotFoundError(w, MsgCardNotFound)
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, c)
}

// GetGif renders the stored gif with its content type
func (h *CardHandler) GetGif(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var gif []byte
	var contentType sql.NullString
	err := h.db.QueryRowContext(r.Context(), `
		SELECT gif, gif_content_type FROM cards WHERE id = $1
	`, id).Scan(&gif, &contentType)
	if err == sql.ErrNoRows {
		httputil.WriteNotFoundError(w, MsgCardNotFound)
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if len(gif) == 0 {
		httputil.WriteNotFoundError(w, MsgGifNotFound)
		return
	}

	w.Header().Set("Content-Type", contentType.String)
	w.WriteHeader(http.StatusOK)
	w.Write(gif)
}

// UpdateGif replaces only the gif blob of a card
func (h *CardHandler) UpdateGif(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(MaxMediaSize); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	gif, gifType, err := readUpload(r, "gif", MaxMediaSize)
	if err == errFileTooLarge {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgMediaTooLarge)
		return
	}
	if err != nil || gif == nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	res, err := h.db.ExecContext(r.Context(), `
		UPDATE cards
		SET gif = $1, gif_content_type = $2, updated_at = $3
		WHERE id = $4
	`, gif, nullString(gifType), time.Now(), id)
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
		httputil.WriteNotFoundError(w, MsgCardNotFound)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, MsgGifUpdated)
}

// Update changes a card's fields and optionally replaces its gif
func (h *CardHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(MaxMediaSize); err != nil {
		httputil.WriteMessage(w, http.StatusBadRequest, MsgFieldError)
		return
	}

	question, correct, wrong, lessonID, ok := parseCardForm(r)
	if !ok {
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

	var res sql.Result
	if gif != nil {
		res, err = h.db.ExecContext(r.Context(), `
			UPDATE cards
			SET question = $1, correct_answer = $2, wrong_answer = $3, lesson_id = $4,
			    gif = $5, gif_content_type = $6, updated_at = $7
			WHERE id = $8
		`, question, correct, wrong, lessonID, gif, nullString(gifType), time.Now(), id)
	} else {
		res, err = h.db.ExecContext(r.Context(), `
			UPDATE cards
			SET question = $1, correct_answer = $2, wrong_answer = $3, lesson_id = $4, updated_at = $5
			WHERE id = $6
		`, question, correct, wrong, lessonID, time.Now(), id)
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
		httputil.WriteNotFoundError(w, MsgCardNotFound)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, MsgCardUpdated)
}

// Delete removes a card
func (h *CardHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	res, err := h.db.ExecContext(r.Context(), `DELETE FROM cards WHERE id = $1`, id)
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
		httputil.WriteNotFoundError(w, MsgCardNotFound)
		return
	}

	httputil.WriteMessage(w, http.StatusOK, MsgCardDeleted)
}
