// Package session runs capture sessions: select an interface, capture for a
// fixed window, run the detectors over the collected records, then hand all
// records to the streamer and the flagged ones to storage.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/endorses/lippyguard/internal/pkg/aggregator"
	"github.com/endorses/lippyguard/internal/pkg/capture"
	"github.com/endorses/lippyguard/internal/pkg/capture/pcaptypes"
	"github.com/endorses/lippyguard/internal/pkg/config"
	"github.com/endorses/lippyguard/internal/pkg/constants"
	"github.com/endorses/lippyguard/internal/pkg/decoder"
	"github.com/endorses/lippyguard/internal/pkg/detector"
	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/endorses/lippyguard/internal/pkg/metrics"
	"github.com/endorses/lippyguard/internal/pkg/types"
	"github.com/google/uuid"
)

// ErrSessionBusy is returned when Run is called while a session is active.
var ErrSessionBusy = errors.New("capture session already running")

// Orchestrator owns at most one session at a time.
type Orchestrator struct {
	cfg       config.Config
	enum      capture.Enumerator
	opener    capture.Opener
	publisher types.Publisher
	store     types.FlaggedStore
	metrics   *metrics.Metrics
	now       func() time.Time

	running atomic.Bool
	state   stateHolder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithEnumerator(e capture.Enumerator) Option {
	return func(o *Orchestrator) { o.enum = e }
}

func WithOpener(op capture.Opener) Option {
	return func(o *Orchestrator) { o.opener = op }
}

func WithPublisher(p types.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithStore(s types.FlaggedStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithClock sets the clock used for the capture window, record timestamps
// and the detection reference time.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an orchestrator. Without options it captures live through
// libpcap and publishes nowhere.
func New(cfg config.Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:  cfg,
		enum: capture.PcapEnumerator{},
		opener: capture.LiveOpener{
			Options: pcaptypes.LiveOptions{
				Promiscuous: cfg.Capture.Promiscuous,
				SnapLen:     cfg.Capture.SnapLen,
				ReadTimeout: cfg.Capture.ReadTimeout,
				BufferSize:  cfg.Capture.BufferSize,
			},
			BPFFilter: cfg.Capture.BPFFilter,
		},
		publisher: types.NoopPublisher{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current lifecycle phase.
func (o *Orchestrator) State() State {
	return o.state.load()
}

// Busy reports whether a session is active.
func (o *Orchestrator) Busy() bool {
	return o.running.Load()
}

func (o *Orchestrator) transition(log *slog.Logger, s State) {
	o.state.store(s)
	log.Debug("Session state changed", "state", s.String())
}

// Run executes one session. Only interface selection and device activation
// failures are returned as errors; later failures degrade the result and are
// listed in Result.Errors. Cancelling ctx ends the capture window early; the
// records captured so far are still analyzed and published.
func (o *Orchestrator) Run(ctx context.Context, overrides Overrides) (*Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.ObserveSession(metrics.OutcomeBusy, 0)
		return nil, ErrSessionBusy
	}
	defer o.running.Store(false)

	cfg, err := overrides.Apply(o.cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{
		SessionID: uuid.New().String(),
		StartedAt: o.now(),
	}
	log := logger.With("session_id", result.SessionID)
	defer o.transition(log, StateIdle)

	o.transition(log, StateSelectingInterface)
	iface, err := o.selectInterface(cfg.Capture)
	if err != nil {
		o.metrics.ObserveSession(metrics.OutcomeNoInterface, 0)
		log.Warn("No capture interface available", "error", err)
		return nil, err
	}
	result.Interface = iface.Name

	dev, err := o.opener.Open(iface)
	if err != nil {
		o.metrics.ObserveSession(metrics.OutcomeDeviceOpen, 0)
		log.Error("Failed to open capture device", "interface", iface.Name, "error", err)
		if !errors.Is(err, capture.ErrDeviceOpen) {
			err = fmt.Errorf("%w: %s: %v", capture.ErrDeviceOpen, iface.Name, err)
		}
		return nil, err
	}

	o.transition(log, StateCapturing)
	log.Info("Capture session started",
		"interface", iface.Name,
		"window", cfg.Capture.Window)
	buf := o.runCapture(ctx, log, cfg, dev, result)

	o.transition(log, StateAnalyzing)
	records := buf.Snapshot()
	result.Report = detector.NewDefaultRegistry(cfg.Detection).Run(records, o.now())
	for _, outcome := range result.Report.Outcomes {
		if outcome.Err != nil {
			result.addError(outcome.Err)
			if o.metrics != nil {
				o.metrics.DetectorFailures.WithLabelValues(outcome.Name).Inc()
			}
			continue
		}
		if o.metrics != nil {
			o.metrics.RecordsFlagged.WithLabelValues(outcome.Name).Add(float64(outcome.Marked))
		}
	}
	result.Records = records
	result.Flagged = types.FilterFlagged(records)

	o.transition(log, StatePublishing)
	result.EndedAt = o.now()
	o.publish(ctx, log, cfg, result)

	o.metrics.ObserveSession(metrics.OutcomeCompleted, result.EndedAt.Sub(result.StartedAt))
	log.Info("Capture session complete",
		"interface", result.Interface,
		"records", len(result.Records),
		"flagged", len(result.Flagged),
		"skipped", result.Skipped,
		"dropped", result.Dropped,
		"errors", len(result.Errors))
	return result, nil
}

func (o *Orchestrator) selectInterface(cfg config.Capture) (capture.InterfaceInfo, error) {
	if cfg.Interface != "" {
		return capture.FindInterface(o.enum, cfg.Interface)
	}
	return capture.SelectInterface(o.enum, cfg.AllowedMACs)
}

// runCapture drives the poll loop and releases the device on every path.
func (o *Orchestrator) runCapture(ctx context.Context, log *slog.Logger, cfg config.Config, dev capture.Device, result *Result) *aggregator.Buffer {
	defer capture.CloseDevice(dev)

	buf := aggregator.New(cfg.Capture.MaxRecords)
	dec := decoder.New(decoder.WithClock(o.now))

	loop := capture.Loop{Window: cfg.Capture.Window, Now: o.now}
	stats, err := loop.Run(ctx, dev, func(frame capture.RawFrame) {
		rec, err := dec.Decode(frame)
		if err != nil {
			result.Skipped++
			return
		}
		buf.Append(rec)
	})
	result.Capture = stats
	result.Dropped = buf.Dropped()

	if o.metrics != nil {
		o.metrics.FramesCaptured.Add(float64(stats.Frames))
		o.metrics.FramesSkipped.Add(float64(result.Skipped))
		o.metrics.RecordsDropped.Add(float64(result.Dropped))
	}

	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		log.Warn("Capture window cut short", "reason", err)
	default:
		result.addError(fmt.Errorf("capture ended early: %w", err))
	}
	if result.Dropped > 0 {
		log.Warn("Record limit reached, newest records dropped",
			"limit", cfg.Capture.MaxRecords,
			"dropped", result.Dropped)
	}
	return buf
}

// publish sends every record to the streamer and the flagged subset to
// storage. Neither failure is fatal.
func (o *Orchestrator) publish(ctx context.Context, log *slog.Logger, cfg config.Config, result *Result) {
	// A cancelled capture still publishes what it saw.
	ctx = context.WithoutCancel(ctx)

	batch := types.SessionBatch{
		SessionID: result.SessionID,
		Interface: result.Interface,
		StartedAt: result.StartedAt,
		EndedAt:   result.EndedAt,
		Records:   result.Records,
	}
	if err := o.publisher.Publish(ctx, batch); err != nil {
		log.Error("Failed to publish session records", "error", err)
		result.addError(fmt.Errorf("publish: %w", err))
	}

	if len(result.Flagged) == 0 || o.store == nil {
		return
	}
	timeout := cfg.Storage.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultStorageTimeout
	}
	storeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := o.store.InsertFlagged(storeCtx, result.Flagged); err != nil {
		log.Error("Failed to store flagged records", "count", len(result.Flagged), "error", err)
		result.addError(fmt.Errorf("store flagged records: %w", err))
		if o.metrics != nil {
			o.metrics.StoreErrors.Inc()
		}
	}
}
