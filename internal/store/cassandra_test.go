package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowInserts_IndexBeforeEdge(t *testing.T) {
	inserts := followInserts()
	require.Len(t, inserts, 2)

	assert.False(t, inserts[0].lwt)
	assert.Contains(t, inserts[0].stmt, "followers_by_followee")

	assert.True(t, inserts[1].lwt)
	assert.Contains(t, inserts[1].stmt, "INSERT INTO follows")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(inserts[1].stmt), "IF NOT EXISTS"))
}

func TestCasUpdateResult(t *testing.T) {
	boom := errors.New("timeout")

	assert.NoError(t, casUpdateResult(true, nil))
	assert.ErrorIs(t, casUpdateResult(false, nil), ErrNotFound)
	assert.ErrorIs(t, casUpdateResult(false, boom), boom)
}
