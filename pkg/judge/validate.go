package judge

import (
	"fmt"
	"strings"
)

const weightTolerance = 0.01

// validateRequest enforces a non-empty candidate and rubric weights
// summing within ±0.01 of 1.0.
func validateRequest(req Request) error {
	if req.Candidate == "" {
		return newValidation("candidate must not be empty")
	}
	var sum float64
	for _, d := range req.Rubric.Dimensions {
		sum += d.Weight
	}
	if diff := sum - 1.0; diff < -weightTolerance || diff > weightTolerance {
		return newValidation(fmt.Sprintf("rubric weights sum to %.4f, want 1.0 ±%.2f", sum, weightTolerance))
	}
	return nil
}

// isTransientStderr classifies stderr text as a transient (retryable)
// failure based on network/connection wording.
func isTransientStderr(stderr string) bool {
	lower := strings.ToLower(stderr)
	for _, kw := range []string{
		"connection refused", "connection reset", "timeout", "timed out",
		"temporary failure", "network is unreachable", "broken pipe",
		"eof", "i/o timeout",
	} {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
