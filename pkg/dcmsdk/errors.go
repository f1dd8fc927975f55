package dcmsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// APIError is a transport-level failure: the request never reached a
// channel, or was refused before it did.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Description)
}

// IsRateLimited reports whether the service refused the request for going
// over its rate limit.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// ChannelError is a channel that ran and reported success=false.
type ChannelError struct {
	Channel string
	Message string
}

func (e *ChannelError) Error() string {
	return e.Channel + ": " + e.Message
}

func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
