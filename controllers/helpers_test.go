package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/ephembbs/services"
)

func TestRespondErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err    error
		status int
		code   int
	}{
		{services.ErrUnauthorized, http.StatusUnauthorized, codeUnauthorized},
		{services.ErrForbidden, http.StatusForbidden, codeForbidden},
		{services.ErrContentNotFound, http.StatusNotFound, codeNotFound},
		{fmt.Errorf("wrapped: %w", services.ErrParentClosed), http.StatusConflict, codeInvalidState},
		{services.ErrInvalidInput, http.StatusBadRequest, codeInvalidInput},
		{&services.Error{Kind: services.KindConflict, Msg: "conflict"}, http.StatusConflict, codeConflict},
		{&services.MutedError{Reason: "r", ExpiresAt: time.Now()}, http.StatusForbidden, codeMuted},
		{&services.BannedError{Reason: "r"}, http.StatusForbidden, codeBanned},
		{errors.New("disk on fire"), http.StatusInternalServerError, codeInternal},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		respondError(c, tc.err)
		assert.Equal(t, tc.status, w.Code, tc.err.Error())

		var body struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Code, tc.err.Error())
		assert.NotContains(t, body.Message, "disk on fire")
	}
}

func TestParsePagination(t *testing.T) {
	p, s := parsePagination("", "")
	assert.Equal(t, 1, p)
	assert.Equal(t, 10, s)
	p, s = parsePagination("3", "500")
	assert.Equal(t, 3, p)
	assert.Equal(t, 10, s)
	p, s = parsePagination("-1", "25")
	assert.Equal(t, 1, p)
	assert.Equal(t, 25, s)
}

func TestValidUsername(t *testing.T) {
	assert.True(t, validUsername("bob_the-builder9"))
	assert.False(t, validUsername("bob smith"))
	assert.False(t, validUsername("bob@x"))
}
