package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrResolution marks failures to discover the audio/video manifests for
	// a source, including unreachable share pages.
	ErrResolution = errors.New("resolution error")
	// ErrFetch marks chunk downloads that exhausted their retries.
	ErrFetch = errors.New("fetch error")
	// ErrMux marks stream combination failures, including desynced tracks.
	ErrMux = errors.New("mux error")
	// ErrAnalysis marks audio tracks that could not be decoded for analysis.
	ErrAnalysis = errors.New("analysis error")
	// ErrNoContent marks sources whose audio is silence end to end.
	ErrNoContent = errors.New("no content")
	// ErrCut marks extraction requests outside the source duration.
	ErrCut = errors.New("cut error")
	// ErrConcat marks clips with incompatible encoding parameters.
	ErrConcat = errors.New("concat error")
	// ErrTimeout marks external tool invocations that exceeded their bound.
	ErrTimeout = errors.New("external tool timeout")
	// ErrConfiguration marks unusable configuration discovered at run time.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures with no more specific classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Message strips the sentinel prefix from a wrapped error, returning the
// human-readable remainder for progress displays.
func Message(err error) string {
	if err == nil {
		return ""
	}
	text := err.Error()
	for _, marker := range []error{
		ErrResolution, ErrFetch, ErrMux, ErrAnalysis, ErrNoContent,
		ErrCut, ErrConcat, ErrTimeout, ErrConfiguration, ErrTransient,
	} {
		if errors.Is(err, marker) {
			prefix := marker.Error() + ": "
			if strings.HasPrefix(text, prefix) {
				return strings.TrimPrefix(text, prefix)
			}
		}
	}
	return text
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
