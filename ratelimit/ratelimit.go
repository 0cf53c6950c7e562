package ratelimit

import "time"

// Normalise mines a rate-limit response body for modelName/rateLimitAlias,
// returning a known:false result for any non-200 status or unparsable
// payload. now is supplied by the caller's clock, never read here.
func Normalise(statusCode int, body []byte, modelName, rateLimitAlias string, now time.Time) Result {
	if statusCode != 200 {
		return Result{}
	}

	strategy := BuildStrategy(modelName, rateLimitAlias)

	return Extract(body, strategy, now)
}
