package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func TestBuildStrategy_IncludesTokensAndBase(t *testing.T) {
	s := BuildStrategy("grok-4-fast", "grok-4-fast")

	assert.Contains(t, s.RemainingKeys, "remaining")
	assert.Contains(t, s.ResetKeys, "resetat")

	found := false

	for _, k := range s.RemainingKeys {
		if k == "grokremaining" || k == "remaininggrok" {
			found = true
		}
	}

	assert.True(t, found, "expected a token-prefixed/suffixed key, got %v", s.RemainingKeys)
}

func TestNormalize_LowercasesAndStripsPunctuation(t *testing.T) {
	assert.Equal(t, "grok4fast", normalize("Grok-4_Fast!!"))
}

func TestExtract_SimpleObject(t *testing.T) {
	strategy := BuildStrategy("grok-4", "grok-4")
	body := []byte(`{"remaining": 42, "resetAt": "2026-08-01T00:00:00Z"}`)

	res := Extract(body, strategy, testNow)

	require.True(t, res.Known)
	require.NotNil(t, res.Remaining)
	assert.Equal(t, int64(42), *res.Remaining)
	require.NotNil(t, res.ResetAt)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), *res.ResetAt)
}

func TestExtract_NestedModelBucket(t *testing.T) {
	strategy := BuildStrategy("grok-4", "grok-4")
	body := []byte(`{"limits": {"grok-4": {"remainingTokens": 7, "retryAfterSeconds": 30}}}`)

	res := Extract(body, strategy, testNow)

	require.True(t, res.Known)
	require.NotNil(t, res.Remaining)
	assert.Equal(t, int64(7), *res.Remaining)
	assert.NotNil(t, res.ResetAt)
}

func TestExtract_UnknownShapeReturnsUnknown(t *testing.T) {
	strategy := BuildStrategy("grok-4", "grok-4")
	body := []byte(`{"status": "ok", "unrelated": true}`)

	res := Extract(body, strategy, testNow)

	assert.False(t, res.Known)
	assert.Nil(t, res.Remaining)
	assert.Nil(t, res.ResetAt)
}

func TestExtract_InvalidJSON(t *testing.T) {
	strategy := BuildStrategy("grok-4", "grok-4")
	res := Extract([]byte("not json"), strategy, testNow)

	assert.False(t, res.Known)
}

func TestNormalise_Non200IsUnknown(t *testing.T) {
	res := Normalise(429, []byte(`{"remaining": 0}`), "grok-4", "grok-4", testNow)
	assert.False(t, res.Known)
}

func TestNormalise_RawEpochMillisReset(t *testing.T) {
	res := Normalise(200, []byte(`{"remaining": 3, "resetAt": 1893456000000}`), "grok-4", "grok-4", testNow)

	require.True(t, res.Known)
	require.NotNil(t, res.ResetAt)
	assert.Equal(t, int64(1893456000000), *res.ResetAt)
}

func TestExtract_ModelQualifiedKeyBeatsGenericKey(t *testing.T) {
	strategy := BuildStrategy("grok-4", "grok-4")
	body := []byte(`{"remaining": 9, "grok4Remaining": 5}`)

	res := Extract(body, strategy, testNow)

	require.NotNil(t, res.Remaining)
	assert.Equal(t, int64(5), *res.Remaining)
}

func TestExtract_ModelHintDoublesBucketScore(t *testing.T) {
	strategy := BuildStrategy("grok-4", "grok-4")
	body := []byte(`{"a":{"model":"other","grokRemaining":9},"b":{"model":"grok-4","grokRemaining":5}}`)

	res := Extract(body, strategy, testNow)

	require.NotNil(t, res.Remaining)
	assert.Equal(t, int64(5), *res.Remaining)
}

func TestExtract_RetryAfterSecondsFromNow(t *testing.T) {
	strategy := BuildStrategy("grok-4", "grok-4")

	res := Extract([]byte(`{"retryAfter": 30}`), strategy, testNow)

	require.NotNil(t, res.ResetAt)
	assert.Equal(t, testNow.Add(30*time.Second).UnixMilli(), *res.ResetAt)
}

func TestExtract_MillisSuffixFromNow(t *testing.T) {
	strategy := BuildStrategy("grok-4", "grok-4")

	res := Extract([]byte(`{"resetAtMillis": 1500}`), strategy, testNow)

	require.NotNil(t, res.ResetAt)
	assert.Equal(t, testNow.Add(1500*time.Millisecond).UnixMilli(), *res.ResetAt)
}
