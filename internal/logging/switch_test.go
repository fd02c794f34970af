package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwitch(t *testing.T) {
	var first, second bytes.Buffer
	sw := NewSwitch(&first)

	_, err := sw.Write([]byte("one"))
	require.NoError(t, err)

	sw.Set(&second)
	_, err = sw.Write([]byte("two"))
	require.NoError(t, err)

	sw.Set(nil)
	n, err := sw.Write([]byte("dropped"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	assert.Equal(t, "one", first.String())
	assert.Equal(t, "two", second.String())
}
