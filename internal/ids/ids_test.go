package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsValidAndUnique(t *testing.T) {
	a, b := New(), New()
	assert.Len(t, a, 27)
	assert.True(t, Valid(a))
	assert.NotEqual(t, a, b)
	assert.False(t, Valid("not-a-ksuid"))
	assert.False(t, Valid(""))
}
