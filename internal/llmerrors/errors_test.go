package llmerrors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRetryableOnlyForTransient(t *testing.T) {
	require.True(t, New(KindTransient, "timeout").Retryable())
	require.False(t, New(KindFatal, "auth failed").Retryable())
	require.False(t, New(KindInput, "bad json").Retryable())
}

func TestKindOfUnclassifiedDefaultsFatal(t *testing.T) {
	require.Equal(t, KindFatal, KindOf(fmt.Errorf("boom")))
}

func TestClassifyHTTPStatus(t *testing.T) {
	require.Equal(t, KindTransient, ClassifyHTTPStatus(429))
	require.Equal(t, KindTransient, ClassifyHTTPStatus(503))
	require.Equal(t, KindFatal, ClassifyHTTPStatus(401))
	require.Equal(t, KindInput, ClassifyHTTPStatus(400))
}

func TestSanitizeForLogTruncatesAndHashes(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'a'
	}
	out := SanitizeForLog(string(long), 100)
	require.Less(t, len(out), 1000)
	require.Contains(t, out, "hash:")
}

func TestWrapUnwrap(t *testing.T) {
	cause := fmt.Errorf("underlying")
	err := Wrap(KindStoreConsistency, cause, "missing endpoint")
	require.ErrorIs(t, err, cause)
	require.True(t, Is(err, KindStoreConsistency))
}
