package ordercode

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateStaysUnderCeiling(t *testing.T) {
	for i := 0; i < 1000; i++ {
		code := Generate()
		require.LessOrEqual(t, code, int64(MaxSafe))
		require.Positive(t, code)
	}
}

func TestGenerateOverflowFallback(t *testing.T) {
	// A far-future timestamp whose 10-digit/6-digit concatenation would blow
	// past the ceiling must fall back to the truncated form.
	future := time.Date(2262, 1, 1, 0, 0, 0, 0, time.UTC)
	code := generateAt(future, func(n int64) int64 { return n - 1 })

	assert.LessOrEqual(t, code, int64(MaxSafe))
	assert.Len(t, strconv.FormatInt(code, 10), 16)
}

func TestGenerateEmbedsTimestamp(t *testing.T) {
	now := time.Unix(1763358892, 0)
	code := generateAt(now, func(int64) int64 { return 902 })

	assert.Equal(t, int64(1763358892000902), code)
}
