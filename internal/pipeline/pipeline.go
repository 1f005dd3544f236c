package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"emgstream/internal/config"
	"emgstream/internal/decode"
	"emgstream/internal/dsp"
	"emgstream/internal/history"
	"emgstream/internal/model"
	"emgstream/internal/session"
	"emgstream/internal/storage"
	"emgstream/internal/telemetry"
)

type controlOp int

const (
	opStartRecording controlOp = iota
	opStopRecording
	opReset
)

type controlRequest struct {
	op    controlOp
	reply chan controlReply
}

type controlReply struct {
	export model.Export
	err    error
}

// Pipeline is the single ingestion path: one worker goroutine decodes
// frames, feeds the cascade, the history buffers and the recording
// session, and publishes snapshots. Recording control requests travel
// through the same loop, so a sample is either fully recorded before a
// stop finalizes the export or fully excluded from it.
type Pipeline struct {
	logger    *slog.Logger
	telemetry *telemetry.Store
	store     storage.Store

	decoder    *decode.Decoder
	cascade    *dsp.Cascade
	stageNames []string
	rawHist    *history.Buffer
	stageHist  []*history.Buffer
	sess       *session.Session

	control       chan controlRequest
	clock         func() time.Time
	flushInterval time.Duration
	lastFlush     time.Time
	pending       []model.StageMetric

	framesIn      atomic.Uint64
	framesDropped atomic.Uint64
	samplesIn     atomic.Uint64
}

// New validates the cascade and decoder configuration up front; a window
// size of 0 or an unknown advance policy fails construction, never a
// running pipeline.
func New(cfg *config.Config, logger *slog.Logger, telemetryStore *telemetry.Store, store storage.Store) (*Pipeline, error) {
	decoder, err := decode.NewDecoder(cfg.Decoder)
	if err != nil {
		return nil, err
	}
	cascade, err := dsp.NewCascade(cfg.Cascade)
	if err != nil {
		return nil, err
	}
	names := cascade.Stages()
	stageHist := make([]*history.Buffer, len(names))
	for i := range stageHist {
		stageHist[i] = history.New(cfg.History.Capacity)
	}
	return &Pipeline{
		logger:        logger,
		telemetry:     telemetryStore,
		store:         store,
		decoder:       decoder,
		cascade:       cascade,
		stageNames:    names,
		rawHist:       history.New(cfg.History.Capacity),
		stageHist:     stageHist,
		sess:          session.New(names),
		control:       make(chan controlRequest),
		clock:         time.Now,
		flushInterval: cfg.Telemetry.FlushInterval,
	}, nil
}

// Stages reports the configured cascade stage names in order.
func (p *Pipeline) Stages() []string {
	out := make([]string, len(p.stageNames))
	copy(out, p.stageNames)
	return out
}

// Run consumes frames strictly in arrival order until the context is
// cancelled or the frame channel closes. All pipeline state is mutated
// only here.
func (p *Pipeline) Run(ctx context.Context, frames <-chan []byte) {
	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				return
			}
			p.ProcessFrame(frame, p.clock())
		case req := <-p.control:
			p.handleControl(req)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessFrame decodes one frame and pushes every sample through history,
// session and cascade, then publishes a fresh snapshot. A malformed frame
// is dropped whole; the pipeline continues with the next one.
func (p *Pipeline) ProcessFrame(frame []byte, now time.Time) {
	samples, err := p.decoder.Decode(frame)
	if err != nil {
		p.framesDropped.Add(1)
		if p.logger != nil {
			p.logger.Warn("dropping malformed frame", "err", err, "frame_bytes", len(frame))
		}
		p.publish(now)
		return
	}
	p.framesIn.Add(1)
	for _, s := range samples {
		p.samplesIn.Add(1)
		p.rawHist.Append(s)
		for _, em := range p.cascade.Push(s, now) {
			p.stageHist[em.Stage].Append(em.Value)
			p.sess.Observe(em.Stage, em.Value)
			if p.store != nil {
				p.pending = append(p.pending, model.StageMetric{Timestamp: now, Stage: em.Name, Value: em.Value})
			}
		}
		p.sess.Ingest(s, now)
	}
	p.publish(now)
	p.flushMetrics(now)
}

// StartRecording transitions the session to Active through the worker
// loop. Requires Run to be active.
func (p *Pipeline) StartRecording(ctx context.Context) error {
	_, err := p.roundTrip(ctx, opStartRecording)
	return err
}

// StopRecording finalizes the session and returns the export. Stopping an
// idle session returns session.ErrNotRecording.
func (p *Pipeline) StopRecording(ctx context.Context) (model.Export, error) {
	return p.roundTrip(ctx, opStopRecording)
}

// Reset clears cascade state, histories and the published snapshot. An
// active recording is left untouched.
func (p *Pipeline) Reset(ctx context.Context) error {
	_, err := p.roundTrip(ctx, opReset)
	return err
}

func (p *Pipeline) roundTrip(ctx context.Context, op controlOp) (model.Export, error) {
	req := controlRequest{op: op, reply: make(chan controlReply, 1)}
	select {
	case p.control <- req:
	case <-ctx.Done():
		return model.Export{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.export, r.err
	case <-ctx.Done():
		return model.Export{}, ctx.Err()
	}
}

func (p *Pipeline) handleControl(req controlRequest) {
	switch req.op {
	case opStartRecording:
		err := p.startRecording(p.clock())
		req.reply <- controlReply{err: err}
	case opStopRecording:
		export, err := p.stopRecording(p.clock())
		req.reply <- controlReply{export: export, err: err}
	case opReset:
		p.reset(p.clock())
		req.reply <- controlReply{}
	}
}

func (p *Pipeline) startRecording(now time.Time) error {
	err := p.sess.Start(now)
	if err == nil && p.logger != nil {
		p.logger.Info("recording started")
	}
	return err
}

func (p *Pipeline) stopRecording(now time.Time) (model.Export, error) {
	export, err := p.sess.Stop(now)
	if err != nil {
		return model.Export{}, err
	}
	if p.logger != nil {
		p.logger.Info("recording stopped", "rows", export.Rows)
	}
	if p.store != nil {
		if serr := p.store.SaveSession(context.Background(), export); serr != nil && p.logger != nil {
			// Export stays in the reply either way so the caller can retry.
			p.logger.Warn("session persist failed", "err", serr)
		}
	}
	p.publish(now)
	return export, nil
}

func (p *Pipeline) reset(now time.Time) {
	p.cascade.Reset()
	p.rawHist.Clear()
	for _, h := range p.stageHist {
		h.Clear()
	}
	p.pending = nil
	p.publish(now)
}

func (p *Pipeline) publish(now time.Time) {
	if p.telemetry == nil {
		return
	}
	latest := p.cascade.Latest()
	stages := make([]model.StageSnapshot, len(p.stageNames))
	for i, name := range p.stageNames {
		stages[i] = model.StageSnapshot{
			Name:    name,
			Latest:  latest[i],
			History: p.stageHist[i].Snapshot(),
		}
	}
	p.telemetry.Publish(model.Snapshot{
		UpdatedAt:     now,
		Recording:     p.sess.Active(),
		FramesIn:      p.framesIn.Load(),
		FramesDropped: p.framesDropped.Load(),
		SamplesIn:     p.samplesIn.Load(),
		Raw:           p.rawHist.Snapshot(),
		Stages:        stages,
	})
}

func (p *Pipeline) flushMetrics(now time.Time) {
	if p.store == nil || len(p.pending) == 0 {
		return
	}
	if !p.lastFlush.IsZero() && now.Sub(p.lastFlush) < p.flushInterval {
		return
	}
	if err := p.store.SaveStageMetrics(context.Background(), p.pending); err != nil && p.logger != nil {
		p.logger.Warn("stage metrics persist failed", "err", err, "count", len(p.pending))
	}
	p.pending = nil
	p.lastFlush = now
}
