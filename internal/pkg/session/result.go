package session

import (
	"time"

	"github.com/endorses/lippyguard/internal/pkg/capture"
	"github.com/endorses/lippyguard/internal/pkg/detector"
	"github.com/endorses/lippyguard/internal/pkg/types"
)

// Result describes one completed session.
type Result struct {
	SessionID string           `json:"session_id"`
	Interface string           `json:"interface"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at"`
	Capture   capture.RunStats `json:"capture"`
	Skipped   int              `json:"skipped_frames"`
	Dropped   uint64           `json:"dropped_records"`
	Report    detector.Report  `json:"detectors"`

	Records []*types.PacketRecord `json:"records"`
	Flagged []*types.PacketRecord `json:"-"`

	// Errors lists the non-fatal failures of the session.
	Errors   []error  `json:"-"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *Result) addError(err error) {
	r.Errors = append(r.Errors, err)
	r.Warnings = append(r.Warnings, err.Error())
}

// Summary is the result without its record list.
type Summary struct {
	SessionID string           `json:"session_id"`
	Interface string           `json:"interface"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at"`
	Capture   capture.RunStats `json:"capture"`
	Records   int              `json:"records"`
	Flagged   int              `json:"flagged"`
	Skipped   int              `json:"skipped_frames"`
	Dropped   uint64           `json:"dropped_records"`
	Report    detector.Report  `json:"detectors"`
	Warnings  []string         `json:"warnings,omitempty"`
}

func (r *Result) Summary() Summary {
	return Summary{
		SessionID: r.SessionID,
		Interface: r.Interface,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Capture:   r.Capture,
		Records:   len(r.Records),
		Flagged:   len(r.Flagged),
		Skipped:   r.Skipped,
		Dropped:   r.Dropped,
		Report:    r.Report,
		Warnings:  r.Warnings,
	}
}
