// Package job implements the Job Controller: the
// top-level lifecycle around a run, a worker pool that drains the Work
// Planner's queue, cooperative cancellation, progress reporting, and
// per-image error recovery into the Result Sink.
package job

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/imagec/engine/internal/commands"
	"github.com/imagec/engine/internal/errs"
	"github.com/imagec/engine/internal/executor"
	"github.com/imagec/engine/internal/ids"
	"github.com/imagec/engine/internal/logging"
	"github.com/imagec/engine/internal/measurekey"
	"github.com/imagec/engine/internal/metrics"
	"github.com/imagec/engine/internal/object"
	"github.com/imagec/engine/internal/plane"
	"github.com/imagec/engine/internal/planner"
	"github.com/imagec/engine/internal/settings"
	"github.com/imagec/engine/internal/sink"
)

// State is one of the Controller's lifecycle states.
type State string

const (
	StatePending  State = "PENDING"
	StateRunning  State = "RUNNING"
	StateFinished State = "FINISHED"
	StateStopped  State = "STOPPED"
	StateFailed   State = "FAILED"
)

// ImageInput is one image the run should process: its inventory, as
// already enumerated by the Plane Source, keyed by absolute path.
type ImageInput struct {
	Path      string
	Inventory plane.ImageInventory
}

// OpenSource opens the decoder for one image path. The engine calls it
// once per image.
type OpenSource func(ctx context.Context, path string) (plane.Source, error)

// Config wires the Controller's collaborators. OpenSource, Store and
// Registry are required; ProgressCache and Threads are optional.
type Config struct {
	OpenSource OpenSource
	Store      *sink.Store
	Registry   *executor.Registry
	Log        logging.Logger

	// ProgressCache mirrors Progress externally. Defaults to a no-op.
	ProgressCache ProgressCache
	// Threads bounds worker concurrency. 0 lets planner.Threads decide
	// from a generous default budget.
	Threads int
	// ClassCompatible drives the Object Atom's tracking-id sweep.
	// Defaults to "same class only".
	ClassCompatible object.ClassCompatibility
}

// Controller runs one job: plan, execute, commit, report.
type Controller struct {
	cfg   Config
	runId ids.RunId

	mu       sync.RWMutex
	state    State
	progress Progress
	errors   []*errs.EngineError

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Controller in state PENDING.
func New(cfg Config) *Controller {
	if cfg.ProgressCache == nil {
		cfg.ProgressCache = noopCache{}
	}
	if cfg.ClassCompatible == nil {
		cfg.ClassCompatible = func(a, b object.Class) bool { return a == b }
	}
	return &Controller{
		cfg:   cfg,
		runId: ids.NewRunId(),
		state: StatePending,
		done:  make(chan struct{}),
	}
}

// RunId returns this Controller's run identifier.
func (c *Controller) RunId() ids.RunId { return c.runId }

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Progress returns the current (finishedUnits, totalUnits,
// finishedImages, totalImages) snapshot.
func (c *Controller) Progress() Progress {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.progress
}

// Errors returns every per-WorkUnit error recorded so far.
func (c *Controller) Errors() []*errs.EngineError {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*errs.EngineError(nil), c.errors...)
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) recordError(e *errs.EngineError) {
	c.mu.Lock()
	c.errors = append(c.errors, e)
	c.mu.Unlock()
}

// Start plans every image against s and begins execution in the
// background, returning once the state transitions to RUNNING. Call
// Wait to block for terminal state, or State/Progress to poll.
func (c *Controller) Start(ctx context.Context, images []ImageInput, s *settings.AnalyzeSettings) error {
	if c.State() != StatePending {
		return errs.New(errs.CodeSettingsInvalid, "job: controller already started")
	}
	if err := validateSettings(s); err != nil {
		c.setState(StateFailed)
		close(c.done)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.setState(StateRunning)

	go c.run(runCtx, images, s)
	return nil
}

// Stop requests cooperative cancellation.
// Workers observe it between WorkUnits and between commands within a
// unit; in-flight ImageBatches are rolled back.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Wait blocks until the run reaches a terminal state.
func (c *Controller) Wait() { <-c.done }

func validateSettings(s *settings.AnalyzeSettings) error {
	if s == nil || len(s.Pipelines) == 0 {
		return errs.New(errs.CodeSettingsInvalid, "job: settings declare no pipelines")
	}
	return nil
}

func (c *Controller) run(ctx context.Context, images []ImageInput, s *settings.AnalyzeSettings) {
	defer close(c.done)

	analyzeId := ids.NewAnalyzeId()
	settingsJson, _ := marshalSettings(s)
	if err := c.cfg.Store.BeginAnalyze(ctx, analyzeId, c.runId, s.ProjectSettings.Plate, settingsJson, nil, unixNow()); err != nil {
		if ctx.Err() != nil {
			c.setState(StateStopped)
			return
		}
		c.recordError(asEngineError(err))
		c.setState(StateFailed)
		return
	}

	plans := make([][]planner.WorkUnit, len(images))
	total := 0
	for i, img := range images {
		imageId := ids.NewImageId(c.runId, img.Path)
		units, err := planner.Plan(imageId, img.Path, img.Inventory, s)
		if err != nil {
			c.recordError(errs.Wrap(errs.CodeDecodeError, "job: plan image", err))
			continue
		}
		plans[i] = units
		total += len(units)
	}

	c.mu.Lock()
	c.progress.TotalUnits = total
	c.progress.TotalImages = len(images)
	c.mu.Unlock()

	threads := c.cfg.Threads
	if threads <= 0 {
		threads = planner.Threads(planner.ThreadBudget{FreeRAMBytes: 2 << 30, TileWidth: 1024, TileHeight: 1024, MaxDepthBytes: 4, PipelineDepthFactor: 2})
	}

	for i, img := range images {
		select {
		case <-ctx.Done():
			c.setState(StateStopped)
			return
		default:
		}

		units := plans[i]
		if len(units) == 0 {
			continue
		}
		imageId := units[0].ImageId

		width, height := 0, 0
		if len(img.Inventory.Series) > 0 {
			width, height = img.Inventory.Series[0].Width, img.Inventory.Series[0].Height
		}
		if err := c.cfg.Store.InsertImage(ctx, analyzeId, imageId, "", img.Path, width, height); err != nil {
			c.recordError(asEngineError(err))
			c.setState(StateFailed)
			return
		}

		source, err := c.cfg.OpenSource(ctx, img.Path)
		if err != nil {
			c.recordError(asEngineError(err))
			c.setState(StateFailed)
			return
		}

		atom := object.NewAtom(c.cfg.ClassCompatible)
		stopped := c.runImageUnits(ctx, source, units, atom, threads)

		c.mu.Lock()
		c.progress.FinishedImages++
		c.mu.Unlock()

		if stopped {
			c.setState(StateStopped)
			return
		}

		type pipelinePlane struct {
			pipeline object.PipelineID
			plane    plane.PlaneId
		}
		stitched := map[pipelinePlane]bool{}
		for _, u := range units {
			key := pipelinePlane{pipeline: u.PipelineID, plane: u.Plane}
			if stitched[key] {
				continue
			}
			stitched[key] = true
			atom.StitchTiles(u.PipelineID, u.Plane, u.Pipeline.PipelineSetup.Connectivity)
		}

		start := time.Now()
		if err := c.commitImage(ctx, imageId, atom); err != nil {
			if errs.IsFatal(err) {
				c.recordError(asEngineError(err))
				c.setState(StateFailed)
				return
			}
			c.recordError(asEngineError(err))
		}
		metrics.ImageCommitLatency.Observe(time.Since(start).Seconds())
	}

	c.cfg.Store.FinishAnalyze(ctx, analyzeId, unixNow())
	c.setState(StateFinished)
}

// runImageUnits fans one image's WorkUnits out across a bounded worker
// pool, returning true if cancellation was observed.
func (c *Controller) runImageUnits(ctx context.Context, source plane.Source, units []planner.WorkUnit, atom *object.Atom, threads int) bool {
	queue := make(chan planner.WorkUnit, len(units))
	for _, u := range units {
		queue <- u
	}
	close(queue)
	metrics.QueueDepth.Set(float64(len(units)))

	var wg sync.WaitGroup
	var stopped bool
	var mu sync.Mutex

	worker := func() {
		defer wg.Done()
		metrics.ActiveWorkers.Inc()
		defer metrics.ActiveWorkers.Dec()

		for u := range queue {
			metrics.QueueDepth.Dec()
			select {
			case <-ctx.Done():
				mu.Lock()
				stopped = true
				mu.Unlock()
				continue
			default:
			}

			execCtx := executor.NewContext(ctx, source, atom, c.cfg.Log, u.PipelineID, u.Plane, u.Tile, u.ObjectIdBase, u.Pipeline.PipelineSetup.DefaultClassId,
				executor.WithProjection(plane.ZRange{Start: u.Plane.ZStack, End: u.Plane.ZStack}, u.Pipeline.PipelineSetup.ZProjection),
				executor.WithConnectivity(u.Pipeline.PipelineSetup.Connectivity))

			cmds, err := commands.Build(c.cfg.Registry, u.Pipeline.PipelineSteps)
			if err == nil {
				_, err = executor.Run(execCtx, cmds)
			}

			if err != nil {
				if errs.Is(err, errs.CodeCancelled) {
					mu.Lock()
					stopped = true
					mu.Unlock()
					continue
				}
				c.recordError(asEngineError(err))
				metrics.WorkUnitsFailed.WithLabelValues(string(errs.Code(err))).Inc()
				c.cfg.Store.InsertImageChannel(ctx, u.ImageId, u.Plane.CStack, u.Plane.ZStack, u.Plane.TStack, 0, 0)
				c.cfg.Store.MarkChannelInvalid(ctx, u.ImageId, u.Plane.CStack, u.Plane.ZStack, u.Plane.TStack, errs.Code(err))
				continue
			}

			c.cfg.Store.InsertImageChannel(ctx, u.ImageId, u.Plane.CStack, u.Plane.ZStack, u.Plane.TStack, 0, 0)
			metrics.WorkUnitsCompleted.Inc()
			c.mu.Lock()
			c.progress.FinishedUnits++
			c.mu.Unlock()
			c.cfg.ProgressCache.Publish(ctx, c.runId, c.Progress())
		}
	}

	for i := 0; i < threads; i++ {
		wg.Add(1)
		go worker()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return stopped
}

// commitImage drains the image's Object Atom and flushes it as one
// transactional ImageBatch. ImageStats are computed only from VALID objects.
func (c *Controller) commitImage(ctx context.Context, imageId ids.ImageId, atom *object.Atom) error {
	batch, err := c.cfg.Store.OpenImageBatch(ctx, imageId)
	if err != nil {
		return err
	}

	objects := atom.Drain()
	statsByChannel := map[int][]float64{}

	for _, o := range objects {
		if err := batch.AppendObject(o.PipelineID, o); err != nil {
			batch.Rollback()
			return err
		}
		if !o.Validity.IsValid() {
			continue
		}
		for channel, stats := range o.IntensityByChannel {
			statsByChannel[channel] = append(statsByChannel[channel], stats.Avg)
		}
	}

	for channel, values := range statsByChannel {
		r := reduceImageStat(values)
		keyed := map[uint32]float64{}
		for stat, v := range map[measurekey.Stat]float64{
			measurekey.StatSum:    r.sum,
			measurekey.StatCount:  r.count,
			measurekey.StatMin:    r.min,
			measurekey.StatMax:    r.max,
			measurekey.StatMedian: r.median,
			measurekey.StatAvg:    r.avg,
			measurekey.StatStddev: r.stddev,
		} {
			key, err := measurekey.Encode(measurekey.Key{
				MeasureChannel: uint16(channel), Stat: stat,
				CrossChannelStacksC: -1, IntersectingChannel: -1,
			})
			if err != nil {
				continue
			}
			keyed[key] = v
		}
		if err := batch.AppendImageStats(channel, keyed); err != nil {
			batch.Rollback()
			return err
		}
	}

	if err := batch.Commit(unixNow()); err != nil {
		return err
	}
	metrics.ObjectsWritten.Add(float64(len(objects)))
	return nil
}

// imageStatReduction holds the seven reductions commitImage computes
// over one channel's per-object value population.
type imageStatReduction struct {
	sum, count, min, max, median, avg, stddev float64
}

// reduceImageStat computes sum/count/min/max/median/avg/stddev over a
// channel's per-object values, drawn from the VALID object population.
// Uses the same lower-middle median and Bessel-corrected (n-1) stddev
// rule as internal/commands/measure.
func reduceImageStat(values []float64) imageStatReduction {
	if len(values) == 0 {
		return imageStatReduction{}
	}
	sum := 0.0
	min, max := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	avg := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - avg
		variance += d * d
	}
	stddev := 0.0
	if len(values) > 1 {
		stddev = math.Sqrt(variance / float64(len(values)-1))
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	median := sorted[(len(sorted)-1)/2]

	return imageStatReduction{
		sum: sum, count: float64(len(values)), min: min, max: max,
		median: median, avg: avg, stddev: stddev,
	}
}

func asEngineError(err error) *errs.EngineError {
	if err == nil {
		return errs.New(errs.CodeMeasurementFailed, "unknown error")
	}
	if e, ok := err.(*errs.EngineError); ok {
		return e
	}
	return errs.Wrap(errs.CodeMeasurementFailed, "job: unclassified failure", err)
}

func unixNow() int64 {
	// time.Now() is intentionally the only non-deterministic input to
	// this package; WorkUnit ordering and object ids stay deterministic
	// regardless of wall-clock time.
	return time.Now().Unix()
}

func marshalSettings(s *settings.AnalyzeSettings) ([]byte, error) {
	return json.Marshal(s)
}
