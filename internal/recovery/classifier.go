package recovery

import (
	"strings"
	"time"

	"github.com/solfege-app/glossary/internal/domain"
)

// Message fragments used to classify stored failure messages. Matching is
// case-insensitive substring search over error_message: by recovery time
// the original Go error values are gone, only their text survives.
var (
	tokenLimitMarkers = []string{
		"token budget",
		"token limit",
		"quota exceeded",
		"resource exhausted",
		"daily budget",
	}
	qualityMarkers = []string{
		"quality",
		"below threshold",
		"acceptable quality",
	}
	apiErrorMarkers = []string{
		"timeout",
		"deadline exceeded",
		"rate limit",
		"429",
		"503",
		"500",
		"connection refused",
		"connection reset",
		"unavailable",
		"transient",
	}
	databaseMarkers = []string{
		"database",
		"sql",
		"constraint",
		"duplicate key",
		"transaction",
	}
)

// Classify maps a failed item's stored error message to a structured
// failure analysis. now is injected so recovery-window estimates are
// testable.
//
// Quality failures and unknown failures are only worth retrying while the
// item is young; after two attempts the same input is overwhelmingly
// likely to fail the same way again.
func Classify(item *domain.BacklogItem, now time.Time) domain.FailureAnalysis {
	message := strings.ToLower(item.ErrorMessage)

	switch {
	case containsAny(message, tokenLimitMarkers):
		return domain.FailureAnalysis{
			Kind:                     domain.FailureTokenLimit,
			Retryable:                true,
			SuggestedAction:          "wait for the daily token budget to reset",
			EstimatedRecoveryMinutes: minutesToUTCMidnight(now),
		}

	case containsAny(message, qualityMarkers):
		return domain.FailureAnalysis{
			Kind:            domain.FailureQuality,
			Retryable:       item.Attempts < 2,
			SuggestedAction: "retry generation; escalate to manual review if quality stays low",
		}

	case containsAny(message, apiErrorMarkers):
		return domain.FailureAnalysis{
			Kind:            domain.FailureAPIError,
			Retryable:       true,
			SuggestedAction: "retry with exponential backoff",
		}

	case containsAny(message, databaseMarkers):
		// A database failure means the item's state may be suspect;
		// retrying blind risks compounding it. Demoted on first sight for
		// manual investigation.
		return domain.FailureAnalysis{
			Kind:            domain.FailureDatabaseError,
			Retryable:       false,
			SuggestedAction: "investigate database state before re-queueing manually",
		}

	default:
		return domain.FailureAnalysis{
			Kind:            domain.FailureUnknown,
			Retryable:       item.Attempts < 2,
			SuggestedAction: "inspect the error message and reclassify",
		}
	}
}

func containsAny(message string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

// minutesToUTCMidnight returns the whole minutes remaining until the next
// UTC midnight, when provider quotas reset. Always at least 1.
func minutesToUTCMidnight(now time.Time) int {
	utc := now.UTC()
	midnight := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	minutes := int(midnight.Sub(utc).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
