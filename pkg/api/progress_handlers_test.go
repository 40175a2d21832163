package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsec-edu/microlearn/pkg/roles"
)

func TestProgress_CompleteLesson(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)
	student := signupAndSignin(t, srv, "student@lsec.edu")

	moduleID := createModule(t, srv, admin, 1, "Seguridad")
	lessonID := createLesson(t, srv, admin, moduleID, "Contraseñas", nil)

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/progress/lesson/%d", lessonID), student, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgProgressSaved, decodeBody(t, rec)["message"])

	rec = doJSON(t, srv, http.MethodGet, "/api/progress", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []ProgressEntry
	require.NoError(t, jsonUnmarshal(rec, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "lesson", entries[0].Kind)
	assert.Equal(t, lessonID, entries[0].RefID)
}

func TestProgress_Idempotent(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)
	student := signupAndSignin(t, srv, "student@lsec.edu")

	moduleID := createModule(t, srv, admin, 1, "Seguridad")
	lessonID := createLesson(t, srv, admin, moduleID, "Contraseñas", nil)

	for i := 0; i < 3; i++ {
		rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/progress/lesson/%d", lessonID), student, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/progress", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []ProgressEntry
	require.NoError(t, jsonUnmarshal(rec, &entries))
	assert.Len(t, entries, 1, "repeated completions must not duplicate rows")
}

func TestProgress_CompleteMicro(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)
	student := signupAndSignin(t, srv, "student@lsec.edu")

	moduleID := createModule(t, srv, admin, 1, "Seguridad")
	lessonID := createLesson(t, srv, admin, moduleID, "Contraseñas", nil)
	microID := createMicro(t, srv, admin, lessonID, "Capsula", nil)

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/progress/micro/%d", microID), student, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/progress", student, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []ProgressEntry
	require.NoError(t, jsonUnmarshal(rec, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "micro", entries[0].Kind)
}

func TestProgress_MissingLesson(t *testing.T) {
	srv, _ := newTestServer(t)
	student := signupAndSignin(t, srv, "student@lsec.edu")

	rec := doJSON(t, srv, http.MethodPost, "/api/progress/lesson/999", student, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgLessonNotFound, decodeBody(t, rec)["error"])
}

func TestProgress_MineIsScoped(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)
	alice := signupAndSignin(t, srv, "alice@lsec.edu")
	bob := signupAndSignin(t, srv, "bob@lsec.edu")

	moduleID := createModule(t, srv, admin, 1, "Seguridad")
	lessonID := createLesson(t, srv, admin, moduleID, "Contraseñas", nil)

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/progress/lesson/%d", lessonID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/progress", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []ProgressEntry
	require.NoError(t, jsonUnmarshal(rec, &entries))
	assert.Empty(t, entries)
}

func TestProgressAll_ModeratorOnly(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)
	student := signupAndSignin(t, srv, "student@lsec.edu")
	moderator := signupAndSignin(t, srv, "mod@lsec.edu", roles.Moderator)

	moduleID := createModule(t, srv, admin, 1, "Seguridad")
	lessonID := createLesson(t, srv, admin, moduleID, "Contraseñas", nil)

	rec := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/api/progress/lesson/%d", lessonID), student, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/progress/all", student, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Requiere rol de moderador", decodeBody(t, rec)["error"])

	rec = doJSON(t, srv, http.MethodGet, "/api/progress/all", moderator, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []ProgressEntry
	require.NoError(t, jsonUnmarshal(rec, &entries))
	assert.Len(t, entries, 1)
}
