package gamearchive_test

import (
	"errors"
	"testing"

	gamearchive "github.com/camoto-go/gamearchive"
	"github.com/stretchr/testify/assert"
)

func TestArchiveErrorWithMessage(t *testing.T) {
	newErr := gamearchive.ErrFileNotFound.WithMessage("example.txt")
	assert.Equal(
		t,
		"no such file in archive: example.txt",
		newErr.Error(),
		"error message is wrong",
	)
	assert.ErrorIs(t, newErr, gamearchive.ErrFileNotFound)
}

func TestArchiveErrorWrap(t *testing.T) {
	originalErr := errors.New("disk read failed")
	newErr := gamearchive.ErrBackingIOError.Wrap(originalErr)

	assert.Equal(
		t,
		"backing stream I/O failed: disk read failed",
		newErr.Error(),
	)
	assert.ErrorIs(t, newErr, originalErr, "original error not set as parent")
	assert.ErrorIs(t, newErr, gamearchive.ErrBackingIOError, "sentinel not set as parent")
}
