package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

type ItemStatus string

const (
	StatusPending     ItemStatus = "pending"
	StatusDownloading ItemStatus = "downloading"
	StatusExtracting  ItemStatus = "extracting"
	StatusCompleted   ItemStatus = "completed"
	StatusFailed      ItemStatus = "failed"
)

// Item is one archive to fetch and unpack. Immutable once enumerated.
type Item struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ArchivePath string `json:"archive_path"`
}

// NewItem derives the remote URL and local archive path for a target name.
func NewItem(name, baseURL, downloadDir string) Item {
	return Item{
		Name:        name,
		URL:         fmt.Sprintf("%s/%s", strings.TrimRight(baseURL, "/"), name),
		ArchivePath: filepath.Join(downloadDir, name),
	}
}

// Outcome is the single terminal result produced for an item.
type Outcome struct {
	ItemName string        `json:"item_name"`
	Kind     OutcomeKind   `json:"kind"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`

	// Err carries the live failure inside the pipeline; ErrorMessage is
	// its portable form for persistence and the status API.
	Err          error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// ErrorText returns the underlying failure message, or "" on success.
func (o Outcome) ErrorText() string {
	if o.ErrorMessage != "" {
		return o.ErrorMessage
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return ""
}
