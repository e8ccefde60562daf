package social

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goliatone/flaresync"
)

// MaxResponseBytes caps how much of a provider response body is read.
const MaxResponseBytes = 1 << 20

// NewAPIRequest builds a provider API request authorized with accessToken.
func NewAPIRequest(ctx context.Context, method, rawURL, accessToken string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// DoJSON sends req and decodes a 2xx JSON response into out. Non 2xx
// responses become a *ProviderError.
func DoJSON(client *http.Client, platform flaresync.Platform, operation string, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return &ProviderError{Platform: platform.String(), Operation: operation, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err != nil {
		return &ProviderError{Platform: platform.String(), Operation: operation, Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ProviderError{
			Platform:    platform.String(),
			Operation:   operation,
			Status:      resp.StatusCode,
			Description: APIErrorMessage(body, platform.String()+" request failed"),
		}
	}

	if out == nil || len(body) == 0 {
		return nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &ProviderError{
			Platform:    platform.String(),
			Operation:   operation,
			Status:      resp.StatusCode,
			Code:        "invalid_response",
			Description: "failed to decode " + operation + " response",
			Err:         err,
		}
	}
	return nil
}

type apiError struct {
	Message          string          `json:"message"`
	Detail           string          `json:"detail"`
	ErrorDescription string          `json:"error_description"`
	ErrorMessage     string          `json:"error_message"`
	Error            json.RawMessage `json:"error"`
}

// APIErrorMessage extracts a human readable message from a provider error
// body, falling back to the raw body and then to fallback.
func APIErrorMessage(body []byte, fallback string) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		for _, msg := range []string{apiErr.ErrorDescription, apiErr.ErrorMessage, apiErr.Message, apiErr.Detail} {
			if msg != "" {
				return msg
			}
		}
		if len(apiErr.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(apiErr.Error, &nested); err == nil && nested.Message != "" {
				return nested.Message
			}
			var plain string
			if err := json.Unmarshal(apiErr.Error, &plain); err == nil && plain != "" {
				return plain
			}
		}
	}

	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fallback
	}
	return msg
}
