package portal

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/jobspec"
	"github.com/helical/genefold/track"
)

// HandlerName identifies the prediction job handler.
const HandlerName = "portal.predict"

// PredictPayload is the job payload for a portal prediction.
type PredictPayload struct {
	Spec *jobspec.Spec `json:"spec"`
}

// DriverFactory opens a fresh browser driver. Each job gets its own driver
// so sessions never share browser state.
type DriverFactory func() (Driver, error)

// PredictHandler executes portal prediction jobs: it drives one automation
// session per job and mirrors session progress into the tracked job record.
type PredictHandler struct {
	tracker   *track.Tracker
	cfg       config.PortalConfig
	newDriver DriverFactory
	log       *zap.SugaredLogger
}

// NewPredictHandler wires the handler to the tracker and a driver factory.
func NewPredictHandler(tracker *track.Tracker, cfg config.PortalConfig, newDriver DriverFactory, log *zap.SugaredLogger) *PredictHandler {
	return &PredictHandler{tracker: tracker, cfg: cfg, newDriver: newDriver, log: log}
}

func (h *PredictHandler) Name() string { return HandlerName }

// Execute runs or resumes one prediction job. A job that already holds an
// external id re-attaches to polling; everything else goes through the full
// submission lifecycle.
func (h *PredictHandler) Execute(ctx context.Context, job *track.Job) error {
	var payload PredictPayload
	if job.ExternalID == "" {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return errors.Wrap(errors.ErrValidation, err.Error())
		}
	}

	driver, err := h.newDriver()
	if err != nil {
		return errors.Wrap(err, "open browser driver")
	}
	defer driver.Close()

	session := NewSession(driver, h.cfg, h.hooks(job), h.log)

	var resultPath string
	if job.ExternalID != "" {
		resultPath, err = session.ResumePolling(ctx, job.ExternalID)
	} else {
		resultPath, err = session.Run(ctx, payload.Spec)
	}
	if err != nil {
		return err
	}

	job.ResultPath = resultPath
	return nil
}

// hooks mirror session progress into the durable job record. Persistence
// failures are logged, never allowed to interrupt a running session, except
// for the external id write: losing that would break restart resumption.
func (h *PredictHandler) hooks(job *track.Job) Hooks {
	persist := func(what string) {
		if err := h.tracker.Update(job); err != nil {
			h.log.Warnw("Failed to persist job progress", "job_id", job.ID, "change", what, "error", err)
		}
	}

	return Hooks{
		OnState: func(state State) {
			job.SetPhase(string(state))
			switch state {
			case StatePolling:
				if err := job.StartPolling(); err != nil {
					h.log.Warnw("Ignoring invalid polling transition", "job_id", job.ID, "error", err)
				}
			case StateDownloading:
				if err := job.StartDownloading(); err != nil {
					h.log.Warnw("Ignoring invalid downloading transition", "job_id", job.ID, "error", err)
				}
			}
			persist("phase " + string(state))
		},
		OnJobID: func(externalID string) error {
			if err := job.SetExternalID(externalID); err != nil {
				return err
			}
			return h.tracker.Update(job)
		},
		OnPoll: func(status string) {
			job.TouchPoll()
			persist("poll " + status)
		},
	}
}
