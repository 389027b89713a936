package daemon

import (
	"context"

	"go.uber.org/zap"

	"splice/internal/logging"
	"splice/internal/tracker"
)

// pumpEvents is the single consumer of the tracker stream. Every event is
// republished to the IPC event hub; terminal events are also recorded in the
// history store and pushed as notifications. Progress events pass through a
// per-job sampler so encoder-rate updates do not flood the log.
//
// History and notification calls use the background context: terminal events
// arriving during shutdown must still be recorded after the daemon context
// is cancelled.
func (d *Daemon) pumpEvents() {
	defer close(d.pumpDone)

	samplers := make(map[string]*logging.ProgressSampler)
	for evt := range d.tracker.Events() {
		d.events.Publish(evt)

		switch evt.Type {
		case tracker.EventJobStarted:
			samplers[evt.JobID] = logging.NewProgressSampler(d.cfg.Render.ProgressBucket)
		case tracker.EventProgressChanged:
			d.logProgress(samplers[evt.JobID], evt)
		case tracker.EventJobCompleted, tracker.EventJobFailed, tracker.EventJobCancelled:
			delete(samplers, evt.JobID)
			d.recordOutcome(evt)
			d.notifyOutcome(evt)
		}
	}
}

func (d *Daemon) logProgress(sampler *logging.ProgressSampler, evt tracker.Event) {
	if evt.Progress == nil {
		return
	}
	percent := evt.Progress.Percent
	if evt.Progress.TotalFrames <= 0 {
		percent = -1
	}
	if !sampler.ShouldLog(percent, evt.Progress.Stage) {
		return
	}
	d.logger.Info("render progress",
		zap.String(logging.FieldJobID, evt.JobID),
		zap.String(logging.FieldStage, evt.Progress.Stage),
		zap.Float64(logging.FieldPercent, evt.Progress.Percent),
		zap.Int64("current_frame", evt.Progress.CurrentFrame),
		zap.Int64("total_frames", evt.Progress.TotalFrames))
}

func (d *Daemon) recordOutcome(evt tracker.Event) {
	if d.history == nil {
		return
	}
	if err := d.history.RecordEvent(context.Background(), evt); err != nil {
		d.logger.Warn("history record failed",
			zap.String(logging.FieldJobID, evt.JobID),
			zap.Error(err))
	}
}

func (d *Daemon) notifyOutcome(evt tracker.Event) {
	name := evt.JobID
	if evt.Progress != nil && evt.Progress.Name != "" {
		name = evt.Progress.Name
	}

	var err error
	switch evt.Type {
	case tracker.EventJobCompleted:
		err = d.notifier.NotifyRenderCompleted(context.Background(), name, evt.OutputPath, evt.Duration)
	case tracker.EventJobFailed:
		err = d.notifier.NotifyRenderFailed(context.Background(), name, evt.Error)
	default:
		return
	}
	if err != nil {
		d.logger.Warn("notification failed",
			zap.String(logging.FieldJobID, evt.JobID),
			zap.Error(err))
	}
}
