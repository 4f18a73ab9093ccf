package services

import (
	"errors"
	"fmt"
	"strings"
)

// Error markers for the caption pipeline. Every failure returned across a
// package boundary wraps exactly one of these so callers can classify it with
// errors.Is or KindOf.
var (
	ErrUnsupportedExtension   = errors.New("unsupported extension")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrPayloadTooLarge        = errors.New("payload too large")
	ErrTranscription          = errors.New("transcription failure")
	ErrEncoding               = errors.New("encoding failure")
	ErrInternal               = errors.New("internal error")
)

// Kind names an error class of the pipeline taxonomy.
type Kind string

const (
	KindNone                   Kind = ""
	KindUnsupportedExtension   Kind = "unsupported_extension"
	KindUnsupportedContentType Kind = "unsupported_content_type"
	KindPayloadTooLarge        Kind = "payload_too_large"
	KindTranscription          Kind = "transcription_failure"
	KindEncoding               Kind = "encoding_failure"
	KindInternal               Kind = "internal_error"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// KindOf maps an error to its taxonomy class. Errors without a marker are
// reported as internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrUnsupportedExtension):
		return KindUnsupportedExtension
	case errors.Is(err, ErrUnsupportedContentType):
		return KindUnsupportedContentType
	case errors.Is(err, ErrPayloadTooLarge):
		return KindPayloadTooLarge
	case errors.Is(err, ErrTranscription):
		return KindTranscription
	case errors.Is(err, ErrEncoding):
		return KindEncoding
	default:
		return KindInternal
	}
}

// IsValidation reports whether err is a client-side admission failure whose
// message is safe to show to the caller.
func IsValidation(err error) bool {
	switch KindOf(err) {
	case KindUnsupportedExtension, KindUnsupportedContentType, KindPayloadTooLarge:
		return true
	default:
		return false
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
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
