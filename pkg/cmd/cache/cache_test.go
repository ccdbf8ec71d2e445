package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racereplay/pkg/replaycache"
)

func TestParseKey(t *testing.T) {
	key, err := parseKey([]string{"2024", "5", "R"}, 25)
	require.NoError(t, err)
	assert.Equal(t, replaycache.Key{Season: 2024, Round: 5, Session: "R", FPS: 25}, key)

	_, err = parseKey([]string{"x", "5", "R"}, 25)
	assert.Error(t, err)
	_, err = parseKey([]string{"2024", "y", "R"}, 25)
	assert.Error(t, err)
}
