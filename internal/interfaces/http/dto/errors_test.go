package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenRevoked, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeInsufficientFunds, http.StatusUnprocessableEntity},
		{ErrCodeDuplicateRevenue, http.StatusConflict},
		{ErrCodeDuplicateCredit, http.StatusConflict},
		{ErrCodeAlreadyDecided, http.StatusConflict},
		{ErrCodeInvalidTransition, http.StatusUnprocessableEntity},
		{ErrCodeRejectionNote, http.StatusBadRequest},
		{ErrCodeNonMonotonicDelays, http.StatusUnprocessableEntity},
		{ErrCodePayloadTooLarge, http.StatusRequestEntityTooLarge},
		// any other invalid-field code is an input error
		{"ERR_INVALID_AMOUNT", http.StatusBadRequest},
		{"ERR_INVALID_TRIGGER", http.StatusBadRequest},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"FORBIDDEN", ErrCodeForbidden},
		{"INSUFFICIENT_FUNDS", ErrCodeInsufficientFunds},
		{"INSUFFICIENT_CREDIT", ErrCodeInsufficientCredit},
		{"ALREADY_DECIDED", ErrCodeAlreadyDecided},
		{"REJECTION_NOTE_REQUIRED", ErrCodeRejectionNote},
		{"INVALID_INPUT", ErrCodeInvalidInput},
		{"VERSION_CONFLICT", ErrCodeConcurrencyConflict},
		{"CONCURRENCY_CONFLICT", ErrCodeConcurrencyConflict},
		{ErrCodeNotFound, ErrCodeNotFound},
		{"", ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID("INSUFFICIENT_FUNDS", "Insufficient wallet balance", "req-123")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInsufficientFunds, resp.Error.Code)
	assert.Equal(t, "req-123", resp.Error.RequestID)
	assert.NotZero(t, resp.Error.Timestamp)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "amount", Message: "This field is required"},
		{Field: "method", Message: "Must be one of: BANK_TRANSFER EWALLET"},
	}

	resp := NewValidationErrorResponse("Request validation failed", "req-789", details)

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Len(t, resp.Error.Details, 2)
	assert.Equal(t, "amount", resp.Error.Details[0].Field)
}

func TestNewErrorResponseWithHelp(t *testing.T) {
	resp := NewErrorResponseWithHelp(ErrCodeUnauthorized, "Not authenticated", "req-001", "https://docs.example.com/auth")
	assert.Equal(t, "https://docs.example.com/auth", resp.Error.Help)
}

func TestErrorResponseJSON(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponseWithRequestID(ErrCodeNotFound, "Payout not found", "req-test-123")

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.NotContains(t, decoded, "data")

	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, ErrCodeNotFound, errObj["code"])
	assert.Equal(t, "req-test-123", errObj["request_id"])
	assert.False(t, resp.Error.Timestamp.Before(before))
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		total         int64
		pageSize      int
		expectedPages int
		expectedSize  int
	}{
		{100, 10, 10, 10},
		{101, 10, 11, 10},
		{0, 10, 0, 10},
		{9, 10, 1, 10},
		{100, 0, 5, 20},
		{100, -1, 5, 20},
	}

	for _, tt := range tests {
		resp := NewSuccessResponseWithMeta(nil, tt.total, 1, tt.pageSize)
		assert.True(t, resp.Success)
		assert.Equal(t, tt.expectedPages, resp.Meta.TotalPages)
		assert.Equal(t, tt.expectedSize, resp.Meta.PageSize)
	}
}
