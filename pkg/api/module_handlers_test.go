package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsec-edu/microlearn/pkg/roles"
)

func createModule(t *testing.T, srv *Server, token string, number int, name string) int64 {
	rec := doJSON(t, srv, http.MethodPost, "/api/module", token, map[string]interface{}{
		"number": number,
		"name":   name,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	module := decodeBody(t, rec)["module"].(map[string]interface{})
	return int64(module["id"].(float64))
}

func TestModuleCreate_RequiresAdmin(t *testing.T) {
	srv, _ := newTestServer(t)
	student := signupAndSignin(t, srv, "student@lsec.edu")

	rec := doJSON(t, srv, http.MethodPost, "/api/module", student, map[string]interface{}{
		"number": 1,
		"name":   "Seguridad",
	})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Requiere rol de administrador", decodeBody(t, rec)["error"])
}

func TestModuleCRUD(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)

	id := createModule(t, srv, admin, 1, "Seguridad")

	// list sorted by number
	createModule(t, srv, admin, 3, "Redes")
	createModule(t, srv, admin, 2, "Criptografía")

	rec := doJSON(t, srv, http.MethodGet, "/api/module", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []Module
	require.NoError(t, jsonUnmarshal(rec, &list))
	require.Len(t, list, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{list[0].Number, list[1].Number, list[2].Number})

	// get one
	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/module/%d", id), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m Module
	require.NoError(t, jsonUnmarshal(rec, &m))
	assert.Equal(t, "Seguridad", m.Name)

	// update
	rec = doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/module/%d", id), admin, map[string]interface{}{
		"number": 1,
		"name":   "Seguridad Informática",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgModuleUpdated, decodeBody(t, rec)["message"])

	// delete
	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/module/%d", id), admin, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgModuleDeleted, decodeBody(t, rec)["message"])

	rec = doJSON(t, srv, http.MethodGet, fmt.Sprintf("/api/module/%d", id), admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgModuleNotFound, decodeBody(t, rec)["error"])
}

func TestModuleCreate_DuplicateNumber(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)

	createModule(t, srv, admin, 1, "Seguridad")

	rec := doJSON(t, srv, http.MethodPost, "/api/module", admin, map[string]interface{}{
		"number": 1,
		"name":   "Otro nombre",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgModuleExists, decodeBody(t, rec)["message"])
}

func TestModuleCreate_InvalidPayload(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)

	rec := doJSON(t, srv, http.MethodPost, "/api/module", admin, map[string]interface{}{
		"number": 0,
		"name":   "",
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgFieldError, decodeBody(t, rec)["message"])
}

func TestModuleUpdate_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	admin := signupAndSignin(t, srv, "admin@lsec.edu", roles.Admin)

	rec := doJSON(t, srv, http.MethodPut, "/api/module/999", admin, map[string]interface{}{
		"number": 9,
		"name":   "Fantasma",
	})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgModuleNotFound, decodeBody(t, rec)["error"])
}
