package errors

import (
	"context"
	goerrors "errors"
	"reflect"
	"strings"

	apperrors "github.com/sudheendra1210/Citycycle/internal/errors"
	"golang.org/x/oauth2"
)

// Classify returns a normalized error class suitable for tagging metrics/logs.
// Application errors report their code, context errors and OAuth2 token endpoint
// errors get fixed names, and anything else falls back to the innermost concrete type.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case goerrors.Is(err, context.Canceled):
		return "canceled"
	case goerrors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	}

	var appErr *apperrors.AppError
	if goerrors.As(err, &appErr) {
		return string(appErr.Code)
	}
	var oauthErr *oauth2.RetrieveError
	if goerrors.As(err, &oauthErr) {
		if oauthErr.ErrorCode != "" {
			return "oauth2_" + oauthErr.ErrorCode
		}
		return "oauth2_retrieve"
	}

	// Unwrap to the innermost error for better signal.
	for {
		unwrapped := goerrors.Unwrap(err)
		if unwrapped == nil {
			break
		}
		err = unwrapped
	}

	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}

	name := strings.ToLower(strings.ReplaceAll(t.String(), "*", ""))
	name = strings.ReplaceAll(name, ".", "_")
	if name == "" {
		return "unknown"
	}
	return name
}
