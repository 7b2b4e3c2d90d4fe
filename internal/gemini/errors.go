package gemini

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

var (
	// ErrQuotaExhausted marks a completion failure caused by quota or
	// rate limiting on the active credential. The caller may advance
	// the pool and prompt the user to retry, at most once per call.
	ErrQuotaExhausted = errors.New("gemini: quota exhausted")

	// ErrNoCredentials is returned when a pool is built from an empty
	// key list.
	ErrNoCredentials = errors.New("gemini: no credentials configured")
)

// classify maps a raw SDK failure onto the error kinds the rest of the
// system understands. This is the only place the backend's error shape
// is inspected; nothing downstream matches strings or status codes.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return fmt.Errorf("%w: %s", ErrQuotaExhausted, apiErr.Status)
		}
	}
	return err
}

// IsQuota reports whether err is a quota-exhaustion failure.
func IsQuota(err error) bool {
	return errors.Is(err, ErrQuotaExhausted)
}
