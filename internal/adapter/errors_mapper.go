package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/opway/opway/internal/session"
)

type apiError struct {
	Error string `json:"error"`
}

// mapHTTPError converts a non-2xx response into a session error.
func mapHTTPError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	msg := errorMessage(resp)

	switch {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", session.ErrValidation, msg)
	case code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", session.ErrInvalidCredentials, msg)
	case code == http.StatusConflict:
		return fmt.Errorf("%w: %s", session.ErrDuplicateAccount, msg)
	case code == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: %s", session.ErrTimeout, msg)
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: http %d: %s", session.ErrUnavailable, code, msg)
	default:
		return fmt.Errorf("http %d: %s", code, msg)
	}
}

func errorMessage(resp *resty.Response) string {
	var body apiError
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		return body.Error
	}
	if text := strings.TrimSpace(string(resp.Body())); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode())
}

// mapTransportError converts a failed round trip into a session error.
func mapTransportError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, session.ErrTimeout)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, session.ErrUnavailable, err)
	}
}
