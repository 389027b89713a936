package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrMediaFile     = errors.New("media file error")
	ErrIO            = errors.New("io error")
	ErrCache         = errors.New("cache error")
	ErrCancelled     = errors.New("render cancelled")
	ErrEncoder       = errors.New("encoder error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTooManyJobs   = errors.New("too many active jobs")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrIO
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind identifies the failure category of an error chain.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindMediaFile     Kind = "media_file"
	KindIO            Kind = "io"
	KindCache         Kind = "cache"
	KindCancelled     Kind = "cancelled"
	KindEncoder       Kind = "encoder"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindUnknown       Kind = "unknown"
)

// FailureKind maps an error chain to its taxonomy category. Unrecognized
// errors report KindUnknown rather than guessing.
func FailureKind(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrMediaFile):
		return KindMediaFile
	case errors.Is(err, ErrEncoder):
		return KindEncoder
	case errors.Is(err, ErrCache):
		return KindCache
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrIO):
		return KindIO
	default:
		return KindUnknown
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
