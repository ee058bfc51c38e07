package spotify

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTemporaryFailure marks failures worth retrying: transport errors, timeouts, 429 and 5xx.
	ErrTemporaryFailure = errors.New("temporary provider failure")

	// ErrTokenRejected marks a token endpoint refusal (invalid_grant, bad client, ...).
	ErrTokenRejected = errors.New("token request rejected")

	ErrInvalidTokenResponse = errors.New("invalid token response")

	ErrResponseTooLarge = errors.New("upstream response too large")
)

// APIError is a non-2xx answer from the listening-data API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("spotify api: %d %s", e.Status, e.Message)
}

func isTemporaryStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

type oauthErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type apiErrorResponse struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
