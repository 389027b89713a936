package services

import (
	"errors"
	"regexp"
)

// Pre-compiled regexes for classifying encoder stderr. A GPU match routes
// the job through the one-time software fallback; transient matches mark
// errors a caller may retry.
var (
	reGPUFailure = regexp.MustCompile(
		`(?i)no nvenc capable devices|` +
			`cannot load (libcuda|nvcuda|libnvidia)|` +
			`cuda (error|failure|initialization)|cuInit|` +
			`nvenc.*(not available|error|failed)|` +
			`failed to initiali[sz]e vaapi|vaapi.*(failed|no device)|` +
			`qsv.*(failed|not supported)|mfx session|` +
			`device creation failed|failed setup for format (cuda|vaapi|qsv|d3d11va)|` +
			`hardware (acceleration|device).*(failed|not found)|` +
			`videotoolbox.*(error|failed)`)

	reTransientFailure = regexp.MustCompile(
		`(?i)resource temporarily unavailable|` +
			`cannot allocate memory|` +
			`too many open files|` +
			`device or resource busy`)
)

func matchGPUFailure(text string) bool {
	return text != "" && reGPUFailure.MatchString(text)
}

func matchTransientFailure(text string) bool {
	return text != "" && reTransientFailure.MatchString(text)
}

// IsGPURelated reports whether the error chain contains an encoder failure
// attributable to hardware-accelerated encoding.
func IsGPURelated(err error) bool {
	var encErr *EncoderError
	if errors.As(err, &encErr) {
		return encErr.GPURelated()
	}
	return false
}

// IsRetryable reports whether re-attempting the failed work could succeed
// without user intervention. Validation and media errors never qualify.
func IsRetryable(err error) bool {
	switch FailureKind(err) {
	case KindValidation, KindMediaFile, KindCancelled, KindConfiguration:
		return false
	}
	var encErr *EncoderError
	if errors.As(err, &encErr) {
		return encErr.Retryable()
	}
	return errors.Is(err, ErrIO)
}

// IsCancelled reports whether the error chain represents a cooperative abort.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
