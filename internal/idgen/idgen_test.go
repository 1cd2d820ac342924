package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrefixedIDs(t *testing.T) {
	cmd := NewCommand()
	require.True(t, strings.HasPrefix(cmd, PrefixCommand))
	_, err := uuid.Parse(strings.TrimPrefix(cmd, PrefixCommand))
	assert.NoError(t, err)

	req := NewRequest()
	require.True(t, strings.HasPrefix(req, PrefixRequest))

	assert.NotEqual(t, New(), New())
}
