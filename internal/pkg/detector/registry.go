package detector

import (
	"errors"
	"fmt"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/config"
	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/endorses/lippyguard/internal/pkg/types"
)

// ErrDetectorFailed wraps a pass that panicked.
var ErrDetectorFailed = errors.New("detector failed")

// Registry runs its detectors one after another over the same records.
// Passes never run concurrently, so each has exclusive access to the flags.
type Registry struct {
	detectors []Detector
}

// NewRegistry creates a registry running ds in order.
func NewRegistry(ds ...Detector) *Registry {
	return &Registry{detectors: ds}
}

// NewDefaultRegistry builds the five standard passes from configuration.
func NewDefaultRegistry(cfg config.Detection) *Registry {
	syn := cfg.SYN()
	udp := cfg.UDP()
	scan := cfg.PortScan()
	return NewRegistry(
		SYNFlood{Threshold: syn.Threshold, Window: syn.Window},
		UDPFlood{Threshold: udp.Threshold, Window: udp.Window},
		PortScan{Threshold: scan.Threshold, Window: scan.Window},
		PingOfDeathV4{MaxLength: cfg.PoDMaxLength},
		PingOfDeathV6{MaxLength: cfg.PoDMaxLength},
	)
}

// Register appends d to the run order.
func (r *Registry) Register(d Detector) {
	r.detectors = append(r.detectors, d)
}

// Names returns the detector names in run order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.detectors))
	for i, d := range r.detectors {
		names[i] = d.Name()
	}
	return names
}

// Outcome is the result of one pass.
type Outcome struct {
	Name   string        `json:"name"`
	Marked int           `json:"marked"`
	Took   time.Duration `json:"took"`
	Err    error         `json:"-"`
}

// Report collects the outcomes of one Run in run order.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Marked returns the total records flagged across passes.
func (r Report) Marked() int {
	total := 0
	for _, o := range r.Outcomes {
		total += o.Marked
	}
	return total
}

// Errors returns the failures of passes that did not complete.
func (r Report) Errors() []error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errs
}

// Run executes every detector against records. A failing pass is recorded
// in the report and the remaining passes still run.
func (r *Registry) Run(records []*types.PacketRecord, now time.Time) Report {
	report := Report{Outcomes: make([]Outcome, 0, len(r.detectors))}
	for _, d := range r.detectors {
		outcome := runOne(d, records, now)
		if outcome.Err != nil {
			logger.Error("Detector pass failed",
				"detector", outcome.Name,
				"error", outcome.Err)
		} else {
			logger.Debug("Detector pass complete",
				"detector", outcome.Name,
				"marked", outcome.Marked,
				"took", outcome.Took)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report
}

func runOne(d Detector, records []*types.PacketRecord, now time.Time) (outcome Outcome) {
	outcome.Name = d.Name()
	start := time.Now()
	defer func() {
		outcome.Took = time.Since(start)
		if p := recover(); p != nil {
			outcome.Marked = 0
			outcome.Err = fmt.Errorf("%w: %s: %v", ErrDetectorFailed, outcome.Name, p)
		}
	}()
	outcome.Marked = d.Detect(records, now)
	return outcome
}
