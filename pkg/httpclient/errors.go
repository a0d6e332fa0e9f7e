package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/utafrali/order-service/pkg/errors"
)

// DownstreamErrorResponse mirrors the error envelope returned by services that
// share pkg/httputil. Other bodies are reported verbatim.
type DownstreamErrorResponse struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError reads the body of a non-2xx response and classifies it:
// any 5xx (including 503 and 504) is ServiceUnavailable, any 4xx is
// ExternalServiceClient. The body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	detail := http.StatusText(resp.StatusCode)
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(bodyBytes) > 0 {
		var downstream DownstreamErrorResponse
		if json.Unmarshal(bodyBytes, &downstream) == nil && downstream.Error != nil {
			detail = downstream.Error.Message
		} else {
			detail = string(bodyBytes)
		}
	}

	switch {
	case resp.StatusCode >= 500:
		return apperrors.ServiceUnavailable(
			fmt.Sprintf("%s unavailable (status %d): %s", serviceName, resp.StatusCode, detail))
	case IsClientError(resp.StatusCode):
		return apperrors.ExternalServiceClient(
			fmt.Sprintf("client error from %s (status %d): %s", serviceName, resp.StatusCode, detail))
	default:
		return fmt.Errorf("%s returned unexpected status %d: %s", serviceName, resp.StatusCode, detail)
	}
}

// IsClientError returns true if the HTTP status code is a 4xx client error.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
