package llm

import "errors"

// Error taxonomy for provider calls. Agent and executor code never lets
// these unwind past the provider boundary — they're captured into
// AgentResult.Error instead, matching the teacher's base_agent pattern of
// converting controller errors into a status-carrying result.
var (
	// ErrProviderUnavailable indicates the backend could not be reached
	// (network failure, connection refused, DNS failure).
	ErrProviderUnavailable = errors.New("llm: provider unavailable")

	// ErrProviderRateLimited indicates the backend rejected the call with
	// a rate-limit response; callers should back off before retrying.
	ErrProviderRateLimited = errors.New("llm: provider rate limited")

	// ErrProviderInvalidResponse indicates the backend responded but the
	// content could not be parsed into the expected shape (e.g. malformed
	// JSON after code-fence stripping and trimming).
	ErrProviderInvalidResponse = errors.New("llm: provider returned invalid response")

	// ErrCircuitOpen indicates the resilient wrapper rejected the call
	// without attempting it because the breaker is open for this provider.
	ErrCircuitOpen = errors.New("llm: circuit open")

	// ErrTimeout indicates the call's context deadline elapsed before the
	// backend responded.
	ErrTimeout = errors.New("llm: call timed out")

	// ErrEmptyResponse indicates the backend returned content shorter than
	// minResponseLen after a successful call — treated as a content
	// failure, not retried beyond whatever isRetryable already allows for
	// ErrProviderUnavailable/ErrTimeout.
	ErrEmptyResponse = errors.New("llm: empty or too-short response")
)

// minResponseLen is spec's "<100 chars fails with EmptyResponse" threshold.
const minResponseLen = 100
