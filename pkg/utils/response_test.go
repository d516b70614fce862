package utils_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workflow-collab-backend/pkg/apperr"
	"workflow-collab-backend/pkg/utils"
)

func TestWriteAppErrorStatusMapping(t *testing.T) {
	cases := []struct {
		kind   apperr.Kind
		status int
	}{
		{apperr.KindUnauthorized, http.StatusUnauthorized},
		{apperr.KindForbidden, http.StatusForbidden},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindInvalidStateTransition, http.StatusConflict},
		{apperr.KindAlreadyResolved, http.StatusConflict},
		{apperr.KindDuplicateInvitation, http.StatusConflict},
		{apperr.KindExpired, http.StatusGone},
		{apperr.KindPreconditionFailed, http.StatusPreconditionFailed},
		{apperr.KindTimeout, http.StatusGatewayTimeout},
		{apperr.KindInternal, http.StatusInternalServerError},
		{apperr.KindStorageFailure, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			rec := httptest.NewRecorder()
			utils.WriteAppError(rec, apperr.New(tc.kind, "boom"))
			assert.Equal(t, tc.status, rec.Code)

			var envelope utils.APIResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
			assert.False(t, envelope.Success)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, string(tc.kind), envelope.Error.Code)
		})
	}
}

func TestWriteMaskedAppErrorHidesForbidden(t *testing.T) {
	rec := httptest.NewRecorder()
	utils.WriteMaskedAppError(rec, apperr.Forbidden("access denied"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var envelope utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "NOT_FOUND", envelope.Error.Code)
	assert.NotContains(t, envelope.Error.Message, "denied")
}

func TestInternalMessagesAreNotLeaked(t *testing.T) {
	rec := httptest.NewRecorder()
	utils.WriteAppError(rec, apperr.New(apperr.KindInternal, "dsn=postgres://user:pw@host"))

	var envelope utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "internal server error", envelope.Error.Message)
}
