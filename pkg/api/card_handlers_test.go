package api

import (
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsec-edu/microlearn/pkg/roles"
)

func createCard(t *testing.T, srv *Server, token string, lessonID int64, question string, gif []byte) int64 {
	files := map[string][]byte{}
	if gif != nil {
		files["gif"] = gif
	}
	rec := doMultipart(t, srv, http.MethodPost, "/api/card", token, map[string]string{
		"question":      question,
		"correctAnswer": "Sí",
		"wrongAnswer":   "No",
		"lesson":        strconv.FormatInt(lessonID, 10),
	}, files)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	card := decodeBody(t, rec)["card"].(map[string]interface{})
	return int64(card["id"].(float64))
}

func TestCardCRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)
	moduleID := createModule(t, srv, admin, 1, "Seguridad")
	lessonID := createLesson(t, srv, admin, moduleID, "Contraseñas", nil)

	id := createCard(t, srv, admin, lessonID, "¿Una contraseña larga es más segura?", nil)

	rec := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/card/%d", id), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var c Card
	require.NoError(t, jsonUnmarshal(rec, &c))
	assert.Equal(t, "Sí", c.CorrectAnswer)
	assert.Equal(t, lessonID, c.LessonID)

	rec = doMultipart(t, srv, http.MethodPut, fmt.Sprintf("/api/card/%d", id), admin, map[string]string{
		"question":      "¿Debo reutilizar contraseñas?",
		"correctAnswer": "No",
		"wrongAnswer":   "Sí",
		"lesson":        strconv.FormatInt(lessonID, 10),
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgCardUpdated, decodeBody(t, rec)["message"])

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/card/%d", id), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgCardDeleted, decodeBody(t, rec)["message"])

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/card/%d", id), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgCardNotFound, decodeBody(t, rec)["error"])
}

func TestCardList_FilterByLesson(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)
	moduleID := createModule(t, srv, admin, 1, "Seguridad")
	lessonA := createLesson(t, srv, admin, moduleID, "Contraseñas", nil)
	lessonB := createLesson(t, srv, admin, moduleID, "Phishing", nil)

	createCard(t, srv, admin, lessonA, "Pregunta A1", nil)
	createCard(t, srv, admin, lessonA, "Pregunta A2", nil)
	createCard(t, srv, admin, lessonB, "Pregunta B1", nil)

	rec := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/card?lesson=%d", lessonA), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Card
	require.NoError(t, jsonUnmarshal(rec, &list))
	assert.Len(t, list, 2)

	rec = doJSON(t, srv, http.MethodGet, "/api/card", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, jsonUnmarshal(rec, &list))
	assert.Len(t, list, 3)
}

func TestCardGif_RoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)
	moduleID := createModule(t, srv, admin, 1, "Seguridad")
	lessonID := createLesson(t, srv, admin, moduleID, "Contraseñas", nil)

	gif := []byte("GIF89a-fake")
	id := createCard(t, srv, admin, lessonID, "¿Pregunta?", gif)

	rec := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/card/gif/%d", id), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, gif, rec.Body.Bytes())

	// replace only the gif
	newGif := []byte("GIF89a-other")
	rec = doMultipart(t, srv, http.MethodPut, fmt.Sprintf("/api/card/gif/%d", id), admin, nil,
		map[string][]byte{"gif": newGif})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgGifUpdated, decodeBody(t, rec)["message"])

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/card/gif/%d", id), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, newGif, rec.Body.Bytes())
}

func TestCardGif_Missing(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)
	moduleID := createModule(t, srv, admin, 1, "Seguridad")
	lessonID := createLesson(t, srv, admin, moduleID, "Contraseñas", nil)
	id := createCard(t, srv, admin, lessonID, "¿Pregunta?", nil)

	rec := doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/card/gif/%d", id), admin, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgGifNotFound, decodeBody(t, rec)["error"])
}
