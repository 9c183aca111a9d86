package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	t.Run("matches sentinel by code", func(t *testing.T) {
		err := NewDomainError("NOT_FOUND", "wallet 42 not found")
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("load: %w", NewDomainError("INVALID_STATE", "nope"))
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("different codes do not match", func(t *testing.T) {
		assert.False(t, errors.Is(ErrNotFound, ErrAlreadyExists))
	})
}

func TestNewPaginated(t *testing.T) {
	p := NewPaginated([]int{1, 2}, 21, 2, 10)
	assert.Equal(t, 3, p.TotalPages)

	empty := NewPaginated([]int{}, 0, 1, 0)
	assert.Zero(t, empty.TotalPages)
}
