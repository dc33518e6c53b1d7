package queue

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending       Status = "pending"
	StatusResolving     Status = "resolving"
	StatusResolved      Status = "resolved"
	StatusFetching      Status = "fetching"
	StatusFetched       Status = "fetched"
	StatusMuxing        Status = "muxing"
	StatusMuxed         Status = "muxed"
	StatusAnalyzing     Status = "analyzing"
	StatusAnalyzed      Status = "analyzed"
	StatusCutting       Status = "cutting"
	StatusCut           Status = "cut"
	StatusConcatenating Status = "concatenating"
	StatusCompleted     Status = "completed"
	StatusFailed        Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusResolving,
	StatusResolved,
	StatusFetching,
	StatusFetched,
	StatusMuxing,
	StatusMuxed,
	StatusAnalyzing,
	StatusAnalyzed,
	StatusCutting,
	StatusCut,
	StatusConcatenating,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusResolving:     {},
	StatusFetching:      {},
	StatusMuxing:        {},
	StatusAnalyzing:     {},
	StatusCutting:       {},
	StatusConcatenating: {},
}

// Transition pairs a ready status with the processing status a claimed item
// moves to.
type Transition struct {
	From Status
	To   Status
}

// stageRollbackTransitions map an interrupted processing status back to the
// ready status it was claimed from.
var stageRollbackTransitions = []Transition{
	{From: StatusResolving, To: StatusPending},
	{From: StatusFetching, To: StatusResolved},
	{From: StatusMuxing, To: StatusFetched},
	{From: StatusAnalyzing, To: StatusMuxed},
	{From: StatusCutting, To: StatusAnalyzed},
	{From: StatusConcatenating, To: StatusCut},
}

// Item represents one source video moving through the pipeline, persisted in
// SQLite.
type Item struct {
	ID              int64
	SourceURL       string
	SourcePath      string
	Title           string
	Status          Status
	DownloadOnly    bool
	ScratchDir      string
	ManifestJSON    string
	AudioStreamPath string
	VideoStreamPath string
	MuxedPath       string
	SilenceJSON     string
	ClipsJSON       string
	OutputPath      string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether the item has finished, successfully or not.
func (i Item) IsTerminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}

// SetProgress updates all three progress fields together.
func (i *Item) SetProgress(stage, message string, percent float64) {
	i.ProgressStage = stage
	i.ProgressMessage = message
	i.ProgressPercent = percent
}

// SetFailed marks the item as failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressStage = "Failed"
	i.ProgressPercent = 0
	i.ProgressMessage = message
}

// RetryStatus returns the status a failed item should restart from, inferred
// from the artifacts already recorded on it.
func (i Item) RetryStatus() Status {
	switch {
	case strings.TrimSpace(i.MuxedPath) != "":
		return StatusMuxed
	case strings.TrimSpace(i.AudioStreamPath) != "" && strings.TrimSpace(i.VideoStreamPath) != "":
		return StatusFetched
	case strings.TrimSpace(i.ManifestJSON) != "":
		return StatusResolved
	default:
		return StatusPending
	}
}

// TitleFromSource derives a filesystem-friendly title from a share URL or a
// local file path.
func TitleFromSource(source string) string {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return "video"
	}
	candidate := trimmed
	if parsed, err := url.Parse(trimmed); err == nil && parsed.Path != "" {
		candidate = parsed.Path
	}
	base := filepath.Base(candidate)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '-'
		}
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		return "video"
	}
	return base
}
