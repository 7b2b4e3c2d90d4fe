package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/genai"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		quota bool
	}{
		{"nil", nil, false},
		{"plain error", errors.New("boom"), false},
		{"http 429", genai.APIError{Code: http.StatusTooManyRequests}, true},
		{"resource exhausted", genai.APIError{Code: 403, Status: "RESOURCE_EXHAUSTED"}, true},
		{"server error", genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}, false},
		{"wrapped 429", fmt.Errorf("call: %w", genai.APIError{Code: http.StatusTooManyRequests}), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if IsQuota(got) != tc.quota {
				t.Errorf("classify(%v) quota = %v, want %v", tc.err, IsQuota(got), tc.quota)
			}
			if tc.err != nil && got == nil {
				t.Error("classify dropped the error")
			}
		})
	}
}
