package converter

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversionError(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := newError(CodeDecode, 2, "c.png", cause)

	assert.Equal(t, "decode_failed: image 2 (c.png): unexpected EOF", err.Error())
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrRecompress)
	assert.Equal(t, CodeDecode, CodeOf(fmt.Errorf("wrapped: %w", err)))

	docErr := newError(CodeFinalize, -1, "doc.pdf", cause)
	assert.Equal(t, "finalize_failed: unexpected EOF", docErr.Error())
	assert.ErrorIs(t, docErr, ErrFinalize)

	assert.Equal(t, Code(""), CodeOf(cause))
}
