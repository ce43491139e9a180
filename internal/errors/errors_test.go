package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineError_CodeAndCategory(t *testing.T) {
	// Given: a dimension mismatch error
	err := DimensionMismatch(128, 64)

	// Then: code, category, and message are derived correctly
	assert.Equal(t, ErrCodeDimensionMismatch, err.Code)
	assert.Equal(t, CategoryValidation, err.Category)
	assert.Contains(t, err.Error(), "expected 128, got 64")
}

func TestEngineError_Unwrap(t *testing.T) {
	// Given: an IO error wrapping a root cause
	cause := fmt.Errorf("disk exploded")
	err := IOError("failed to read slot", cause)

	// Then: errors.Is finds the cause through the chain
	require.ErrorIs(t, err, cause)
	assert.Equal(t, CategoryIO, err.Category)
}

func TestEngineError_IsMatchesByCode(t *testing.T) {
	// Given: two distinct not-found errors
	a := NotFound("row", 7)
	b := NotFound("row", 99)

	// Then: they match by code via errors.Is
	assert.True(t, stderrors.Is(a, b))
	assert.True(t, IsNotFound(a))
	assert.False(t, IsAlreadyDeleted(a))
}

func TestEngineError_FatalSeverity(t *testing.T) {
	// Given: a corrupt snapshot error
	err := New(ErrCodeCorruptSnapshot, "crc mismatch", nil)

	// Then: it is fatal, while validation errors are not
	assert.True(t, IsFatal(err))
	assert.False(t, IsFatal(InvalidArgument("k must be positive")))
}

func TestEngineError_WithDetail(t *testing.T) {
	err := FormatError("bad magic").
		WithDetail("path", "/tmp/db.vkt").
		WithDetail("magic", "XXXX")

	assert.Equal(t, "/tmp/db.vkt", err.Details["path"])
	assert.Equal(t, "XXXX", err.Details["magic"])
}

func TestGetCode_NonEngineError(t *testing.T) {
	assert.Equal(t, "", GetCode(fmt.Errorf("plain")))
	assert.False(t, IsNotFound(nil))
}
