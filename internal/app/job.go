package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/boamp-console/internal/jobs"
	"github.com/JakeFAU/boamp-console/internal/metrics"
	"github.com/JakeFAU/boamp-console/internal/progress"
	"github.com/JakeFAU/boamp-console/internal/results"
)

// SubmitForm is the part of the job form the selection does not provide.
type SubmitForm struct {
	TargetDate     string
	Keywords       []string
	CustomKeywords string
}

// Submit validates the form against the current selection, posts the job
// and starts polling it. A previous job's polling is stopped first.
// Validation failures notify the user and send nothing.
func (c *Controller) Submit(ctx context.Context, form SubmitForm) (jobs.Submission, error) {
	date := form.TargetDate
	if date == "" {
		date = c.today()
	}
	req := jobs.NewRequest(date, c.panel.HiddenValue(), form.Keywords, form.CustomKeywords)
	if err := jobs.Validate(req); err != nil {
		c.reject(err)
		return jobs.Submission{}, err
	}

	c.mu.Lock()
	prev := c.job
	c.job = jobState{
		gen: prev.gen + 1,
		view: JobView{
			ModalOpen:   true,
			StatusText:  fmt.Sprintf(msgStartingTemplate, req.DepartmentCount()),
			StatusLevel: LevelInfo,
			Departments: req.DepartmentCount(),
		},
	}
	gen := c.job.gen
	view := c.job.view
	c.mu.Unlock()

	c.abandon(prev)
	c.publish(ChangeJob, view)

	sub, err := c.submitter.Submit(ctx, req)
	if err != nil {
		c.submitFailed(gen, req, err)
		return jobs.Submission{}, err
	}
	metrics.ObserveSubmission(metrics.OutcomeSuccess)

	c.mu.Lock()
	if c.job.gen != gen {
		c.mu.Unlock()
		c.logger.Info("submission superseded before polling started", zap.String("process_id", sub.ProcessID))
		c.emit(progress.Event{JobID: sub.ProcessID, Stage: progress.StageAbandoned, Note: "superseded"})
		return sub, nil
	}
	c.job.started = c.now()
	c.job.view.ProcessID = sub.ProcessID
	c.job.view.Status = sub.Status
	c.job.view.ShowProgress = true
	c.job.view.StepLabel = jobs.StepLabel(string(jobs.StatusStarting))
	if c.poller != nil {
		c.job.sub = c.poller.Start(c.baseCtx, sub.ProcessID, &pollObserver{c: c, gen: gen})
	}
	view = c.job.view
	c.mu.Unlock()

	c.emit(progress.Event{JobID: sub.ProcessID, Stage: progress.StageSubmitted, Departments: req.DepartmentCount()})
	c.publish(ChangeJob, view)
	return sub, nil
}

func (c *Controller) reject(err error) {
	metrics.ObserveSubmission(metrics.OutcomeRejected)
	c.emit(progress.Event{Stage: progress.StageRejected, Note: err.Error()})
	switch {
	case errors.Is(err, jobs.ErrNoDepartments):
		c.notes.Info(MsgNoDepartments)
	case errors.Is(err, jobs.ErrNoKeywords):
		c.notes.Info(MsgNoKeywords)
	}
}

func (c *Controller) submitFailed(gen uint64, req jobs.Request, err error) {
	metrics.ObserveSubmission(metrics.OutcomeFailure)
	msg := jobs.ErrorDetail(err)
	c.emit(progress.Event{Stage: progress.StageRejected, Departments: req.DepartmentCount(), Note: msg})

	c.mu.Lock()
	if c.job.gen != gen {
		c.mu.Unlock()
		return
	}
	c.job.view.ModalOpen = false
	c.job.view.StatusText = msg
	c.job.view.StatusLevel = LevelDanger
	c.job.view.Error = msg
	view := c.job.view
	c.mu.Unlock()

	c.notes.Error(msgErrorPrefix + msg)
	c.publish(ChangeJob, view)
}

// abandon stops a replaced job's polling. It must run without c.mu held:
// Stop waits for the poll goroutine, which may be waiting on c.mu.
func (c *Controller) abandon(prev jobState) {
	if prev.sub == nil {
		return
	}
	prev.sub.Stop()
	c.emit(progress.Event{
		JobID: prev.view.ProcessID,
		Stage: progress.StageAbandoned,
		Dur:   c.since(prev.started),
		Note:  "replaced by a new submission",
	})
}

func (c *Controller) emit(evt progress.Event) {
	if evt.TS.IsZero() {
		evt.TS = c.now()
	}
	c.events.Emit(evt)
}

func (c *Controller) since(t time.Time) time.Duration {
	if t.IsZero() {
		return 0
	}
	if d := c.now().Sub(t); d > 0 {
		return d
	}
	return 0
}

// pollObserver applies poll outcomes for one submission. Callbacks for a
// replaced submission are ignored.
type pollObserver struct {
	c   *Controller
	gen uint64
}

func (o *pollObserver) Progress(processID string, p jobs.Progress) {
	c := o.c
	metrics.ObservePoll(metrics.OutcomeSuccess)

	c.mu.Lock()
	if c.job.gen != o.gen {
		c.mu.Unlock()
		return
	}
	v := &c.job.view
	v.Status = p.Status
	v.StepLabel = p.StepLabel()
	if pct, ok := jobs.Percent(p.ProcessedRecords, p.TotalRecords); ok {
		v.Percent = pct
		v.ProgressText, _ = jobs.ProgressText(p.ProcessedRecords, p.TotalRecords)
	}
	view := *v
	c.mu.Unlock()

	if !p.Status.Terminal() {
		c.emit(progress.Event{
			JobID:     processID,
			Stage:     progress.StageProgress,
			Step:      p.CurrentStep,
			Processed: p.ProcessedRecords,
			Total:     p.TotalRecords,
		})
	}
	c.publish(ChangeJob, view)
}

func (o *pollObserver) PollFailed(processID string, err error) {
	metrics.ObservePoll(metrics.OutcomeFailure)
	o.c.emit(progress.Event{JobID: processID, Stage: progress.StagePollFailed, Note: err.Error()})
}

func (o *pollObserver) Finished(processID string, p jobs.Progress, err error) {
	c := o.c
	c.mu.Lock()
	if c.job.gen != o.gen {
		c.mu.Unlock()
		return
	}
	c.job.sub = nil
	v := &c.job.view
	v.ModalOpen = false
	dur := c.since(c.job.started)

	var (
		evt     progress.Event
		view    results.View
		success bool
		msg     string
	)
	switch {
	case err != nil:
		msg = MsgPollTimeout
		if !errors.Is(err, jobs.ErrPollTimeout) {
			msg = err.Error()
		}
		v.Error = msg
		v.StatusText = msg
		v.StatusLevel = LevelDanger
		evt = progress.Event{JobID: processID, Stage: progress.StageTimedOut, Dur: dur, Note: err.Error()}
	case p.Status == jobs.StatusCompleted:
		view = results.Build(processID, p)
		c.results = &view
		success = true
		v.StatusText = view.StatusLine
		v.StatusLevel = LevelSuccess
		v.StepLabel = p.StepLabel()
		evt = progress.Event{
			JobID:       processID,
			Stage:       progress.StageCompleted,
			Rows:        len(p.SummaryTable),
			Departments: len(p.Departments),
			Dur:         dur,
		}
	default:
		msg = p.Error
		if msg == "" {
			msg = MsgUnknownError
		}
		v.Error = msg
		evt = progress.Event{JobID: processID, Stage: progress.StageFailed, Dur: dur, Note: msg}
	}
	jobView := *v
	c.mu.Unlock()

	c.emit(evt)
	c.publish(ChangeJob, jobView)
	if success {
		c.publish(ChangeResults, view)
		c.notes.Success(MsgCompleted)
		return
	}
	c.notes.Error(msgErrorPrefix + msg)
}
