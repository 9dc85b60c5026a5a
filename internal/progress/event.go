package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage names a sweep milestone.
type Stage string

// Supported stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageRunDone    Stage = "RUN_DONE"
	StageRunError   Stage = "RUN_ERROR"
	StageFetchDone  Stage = "FETCH_DONE"
	StageTargetDone Stage = "TARGET_DONE"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event is one sweep telemetry sample.
type Event struct {
	// RunID ties the event to a sweep run row.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage says which milestone this is.
	Stage Stage
	// Site scopes fetch and target events to a hostname label.
	Site string
	// URL is the page URL for fetch events, without credentials.
	URL string
	// Bytes is the fetched body size.
	Bytes int64
	// Staged counts candidates staged by the run or target.
	Staged int64
	// StatusClass groups the HTTP response code for fetch events.
	StatusClass StatusClass
	// Dur is the fetch latency or total run wall time.
	Dur time.Duration
	// Note carries short free-form context such as an error code.
	Note string
}

// Validate rejects events a sink could not attribute.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageFetchDone:
		if e.Site == "" {
			return errors.New("fetch done requires site")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	case StageTargetDone:
		if e.Site == "" {
			return errors.New("target done requires site")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups an HTTP status code for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
