package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/eksporyuk/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payoutBody struct {
	Method string `json:"method" binding:"required,oneof=BANK_TRANSFER EWALLET"`
	Note   string `json:"note" binding:"max=10"`
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()

	router := gin.New()
	router.POST("/payouts", func(c *gin.Context) {
		var body payoutBody
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	t.Run("field errors use json names", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payouts",
			strings.NewReader(`{"method":"CASH","note":"far too long for this"}`)))

		require.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		require.Len(t, resp.Error.Details, 2)
		assert.Equal(t, "method", resp.Error.Details[0].Field)
		assert.Equal(t, "Must be one of: BANK_TRANSFER EWALLET", resp.Error.Details[0].Message)
		assert.Equal(t, "Must be at most 10 characters", resp.Error.Details[1].Message)
	})

	t.Run("malformed json", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(`{"method":`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeInvalidJSON, errorCode(t, w))
	})
}
