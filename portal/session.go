package portal

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/helical/genefold/config"
	"github.com/helical/genefold/errors"
	"github.com/helical/genefold/jobspec"
)

// Hooks let the job tracker observe session progress without the session
// knowing about persistence. All hooks are optional.
type Hooks struct {
	OnState func(State)        // fired on every state transition
	OnJobID func(string) error // fired once when the portal assigns a job id
	OnPoll  func(status string)
}

// Session drives one prediction job through the portal, start to finish.
// One session owns one browser driver exclusively; sessions never share
// browser state. Cancellation is cooperative: the context is checked between
// states and between poll cycles, never mid-interaction, so the portal is
// never left with a half-filled form.
type Session struct {
	driver    Driver
	hooks     Hooks
	log       *zap.SugaredLogger
	state     State
	baseURL   string
	email     string
	password  string
	selectors map[string]string
	statusMap map[string]string

	stepTimeout  time.Duration
	pollInterval time.Duration
	pollDeadline time.Duration
	backoff      time.Duration

	authRetryLimit   int
	submitRetryLimit int
	pollRetryLimit   int
}

// NewSession builds a session from portal configuration. The driver is owned
// by the session from here on; Run and ResumePolling close nothing, the
// caller releases the driver.
func NewSession(driver Driver, cfg config.PortalConfig, hooks Hooks, log *zap.SugaredLogger) *Session {
	return &Session{
		driver:           driver,
		hooks:            hooks,
		log:              log,
		state:            StateIdle,
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		email:            cfg.Email,
		password:         cfg.Password,
		selectors:        cfg.Selectors,
		statusMap:        cfg.StatusMap,
		stepTimeout:      time.Duration(cfg.StepTimeoutSeconds) * time.Second,
		pollInterval:     time.Duration(cfg.PollIntervalSeconds) * time.Second,
		pollDeadline:     time.Duration(cfg.PollTimeoutMinutes) * time.Minute,
		backoff:          time.Duration(cfg.BackoffSeconds) * time.Second,
		authRetryLimit:   cfg.AuthRetryLimit,
		submitRetryLimit: cfg.SubmitRetryLimit,
		pollRetryLimit:   cfg.PollRetryLimit,
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	return s.state
}

func (s *Session) setState(next State) {
	s.state = next
	if s.hooks.OnState != nil {
		s.hooks.OnState(next)
	}
}

// checkpoint observes cancellation between automation interactions.
func (s *Session) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		s.setState(StateFailed)
		return errors.Wrap(errors.ErrCancelled, err.Error())
	}
	return nil
}

func (s *Session) fail(err error) error {
	s.setState(StateFailed)
	return err
}

// Run executes the full submission lifecycle and returns the downloaded
// artifact path. The spec is validated before any browser interaction: a
// defective spec is a ValidationError, never retried.
func (s *Session) Run(ctx context.Context, spec *jobspec.Spec) (string, error) {
	if err := validateSpec(spec); err != nil {
		return "", s.fail(err)
	}

	if err := s.checkpoint(ctx); err != nil {
		return "", err
	}
	s.setState(StateAuthenticating)
	if err := s.authenticate(ctx); err != nil {
		return "", s.fail(err)
	}

	if err := s.checkpoint(ctx); err != nil {
		return "", err
	}
	s.setState(StateNavigatingToForm)
	if err := s.navigateToForm(ctx); err != nil {
		return "", s.fail(err)
	}

	if err := s.checkpoint(ctx); err != nil {
		return "", err
	}
	s.setState(StateFillingForm)
	if err := s.fillForm(ctx, spec); err != nil {
		return "", s.fail(err)
	}

	if err := s.checkpoint(ctx); err != nil {
		return "", err
	}
	jobID, err := s.submit(ctx)
	if err != nil {
		return "", s.fail(err)
	}
	if s.hooks.OnJobID != nil {
		if err := s.hooks.OnJobID(jobID); err != nil {
			return "", s.fail(errors.Wrap(err, "record external job id"))
		}
	}

	return s.pollAndDownload(ctx, jobID)
}

// ResumePolling re-attaches to a job that already has a portal-assigned id,
// skipping submission entirely. Used after a process restart.
func (s *Session) ResumePolling(ctx context.Context, jobID string) (string, error) {
	if strings.TrimSpace(jobID) == "" {
		return "", s.fail(errors.Wrap(errors.ErrValidation, "cannot resume without an external job id"))
	}

	if err := s.checkpoint(ctx); err != nil {
		return "", err
	}
	s.setState(StateAuthenticating)
	if err := s.authenticate(ctx); err != nil {
		return "", s.fail(err)
	}

	return s.pollAndDownload(ctx, jobID)
}

func (s *Session) pollAndDownload(ctx context.Context, jobID string) (string, error) {
	if err := s.checkpoint(ctx); err != nil {
		return "", err
	}
	s.setState(StatePolling)
	if err := s.poll(ctx, jobID); err != nil {
		return "", s.fail(err)
	}

	if err := s.checkpoint(ctx); err != nil {
		return "", err
	}
	s.setState(StateDownloading)
	path, err := s.download(ctx, jobID)
	if err != nil {
		return "", s.fail(err)
	}

	s.setState(StateDone)
	return path, nil
}

func validateSpec(spec *jobspec.Spec) error {
	if spec == nil {
		return errors.Wrap(errors.ErrValidation, "job spec is nil")
	}
	if strings.TrimSpace(spec.JobName) == "" {
		return errors.Wrap(errors.ErrValidation, "job spec has no job name")
	}
	if strings.TrimSpace(spec.DNA) == "" {
		return errors.Wrap(errors.ErrValidation, "job spec has no DNA sequence")
	}
	if len(spec.ProteinSequences()) == 0 {
		return errors.Wrap(errors.ErrValidation, "job spec has no protein sequence")
	}
	return nil
}

// authenticate establishes a signed-in session. A persistent browser profile
// usually carries a live session cookie, so the marker check runs before any
// credential entry. Credentials are never logged.
func (s *Session) authenticate(ctx context.Context) error {
	marker := s.selectors[config.SelAuthMarker]

	for attempt := 0; attempt <= s.authRetryLimit; attempt++ {
		if err := s.checkpoint(ctx); err != nil {
			return err
		}
		if attempt > 0 {
			s.log.Warnw("Retrying authentication", "attempt", attempt)
			if err := sleepCtx(ctx, s.backoff); err != nil {
				return err
			}
		}

		if err := s.driver.Navigate(ctx, s.baseURL); err != nil {
			continue
		}
		if err := s.driver.WaitFor(ctx, marker, s.stepTimeout); err == nil {
			return nil // already signed in
		}

		if s.email == "" || s.password == "" {
			return errors.Wrap(errors.ErrValidation, "portal credentials are not configured")
		}
		if err := s.driver.SetValue(ctx, s.selectors[config.SelLoginEmail], s.email); err != nil {
			continue
		}
		if err := s.driver.SetValue(ctx, s.selectors[config.SelLoginPassword], s.password); err != nil {
			continue
		}
		if err := s.driver.Click(ctx, s.selectors[config.SelLoginSubmit]); err != nil {
			continue
		}
		if err := s.driver.WaitFor(ctx, marker, s.stepTimeout); err == nil {
			return nil
		}
	}
	return errors.NewAutomation(errors.AutomationTimeout,
		"authentication marker never appeared after %d attempts", s.authRetryLimit+1)
}

func (s *Session) navigateToForm(ctx context.Context) error {
	if err := s.driver.Click(ctx, s.selectors[config.SelNewJob]); err != nil {
		return err
	}
	return s.driver.WaitFor(ctx, s.selectors[config.SelProteinInput], s.stepTimeout)
}

// fillForm sets every required field. All fields were validated up front, so
// a failure here is driver flakiness, not a spec defect.
func (s *Session) fillForm(ctx context.Context, spec *jobspec.Spec) error {
	proteins := strings.Join(spec.ProteinSequences(), "\n")
	if err := s.driver.SetValue(ctx, s.selectors[config.SelProteinInput], proteins); err != nil {
		return err
	}
	if err := s.driver.SetValue(ctx, s.selectors[config.SelDNAInput], spec.DNA); err != nil {
		return err
	}
	return s.driver.SetValue(ctx, s.selectors[config.SelJobNameInput], spec.JobName)
}

// submit fires the submit action and waits for either the job id element or
// an error banner. A busy/rate-limited banner re-enters submission after a
// backoff, bounded by the submit retry limit; unknown banner text is fatal.
func (s *Session) submit(ctx context.Context) (string, error) {
	for attempt := 0; attempt <= s.submitRetryLimit; attempt++ {
		if err := s.checkpoint(ctx); err != nil {
			return "", err
		}
		if attempt > 0 {
			s.log.Infow("Re-submitting after portal backoff", "attempt", attempt)
			if err := sleepCtx(ctx, s.backoff); err != nil {
				return "", err
			}
		}
		s.setState(StateSubmitting)

		if err := s.driver.Click(ctx, s.selectors[config.SelSubmitButton]); err != nil {
			return "", err
		}
		s.setState(StateAwaitingJobID)

		waitErr := s.driver.WaitFor(ctx, s.selectors[config.SelJobIDText], s.stepTimeout)
		if waitErr == nil {
			jobID, err := s.driver.ReadText(ctx, s.selectors[config.SelJobIDText])
			if err != nil {
				return "", err
			}
			jobID = strings.TrimSpace(jobID)
			if jobID == "" {
				return "", errors.NewAutomation(errors.AutomationUnrecognizedResponse,
					"job id element is empty")
			}
			return jobID, nil
		}

		banner, err := s.readBanner(ctx)
		if err != nil {
			return "", err
		}
		switch {
		case banner == "":
			// Neither job id nor banner: transient flakiness, retry.
			s.log.Warnw("No job id or error banner after submit", "attempt", attempt)
		case isBusyBanner(banner):
			s.log.Warnw("Portal busy, backing off before re-submit", "banner", banner)
		default:
			return "", errors.NewAutomation(errors.AutomationUnrecognizedResponse,
				"portal rejected submission: %s", banner)
		}
	}
	return "", errors.NewAutomation(errors.AutomationRateLimited,
		"submission retry limit reached (%d attempts)", s.submitRetryLimit+1)
}

// readBanner returns the error banner text, or "" when no banner is shown.
func (s *Session) readBanner(ctx context.Context) (string, error) {
	sel := s.selectors[config.SelErrorBanner]
	found, err := s.driver.Find(ctx, sel)
	if err != nil || !found {
		return "", nil
	}
	text, err := s.driver.ReadText(ctx, sel)
	if err != nil {
		return "", nil // banner vanished between find and read
	}
	return strings.TrimSpace(text), nil
}

func isBusyBanner(text string) bool {
	lower := strings.ToLower(text)
	for _, marker := range []string{"busy", "rate limit", "too many", "try again"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// poll re-reads the job status at the configured interval until the portal
// reports complete, failed, or the overall deadline passes. Transient read
// failures retry the same cycle up to the per-poll bound; a busy banner seen
// pollRetryLimit times consecutively escalates to rate_limited.
func (s *Session) poll(ctx context.Context, jobID string) error {
	deadline := time.Now().Add(s.pollDeadline)
	consecutiveBusy := 0

	for {
		if err := s.checkpoint(ctx); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return errors.NewAutomation(errors.AutomationTimeout,
				"job %s still not complete after %s", jobID, s.pollDeadline)
		}

		status, busy, err := s.readStatusCycle(ctx, jobID)
		if err != nil {
			return err
		}

		if busy != "" {
			consecutiveBusy++
			if consecutiveBusy >= s.pollRetryLimit {
				return errors.NewAutomation(errors.AutomationRateLimited,
					"portal busy for %d consecutive poll cycles: %s", consecutiveBusy, busy)
			}
			if err := sleepCtx(ctx, s.backoff); err != nil {
				return err
			}
			continue
		}
		consecutiveBusy = 0

		if s.hooks.OnPoll != nil {
			s.hooks.OnPoll(status)
		}

		switch status {
		case portalComplete:
			return nil
		case portalFailed:
			reason, _ := s.readBanner(ctx)
			if reason == "" {
				reason = "portal reported failure without a reason"
			}
			return errors.Wrap(errors.ErrJobFailed, reason)
		case portalQueued, portalRunning:
			if err := sleepCtx(ctx, s.pollInterval); err != nil {
				return err
			}
		}
	}
}

// readStatusCycle performs one poll cycle: re-navigate to the status page,
// read the indicator, map it to a known status. Transient failures retry
// within the cycle up to the per-poll bound before escalating.
func (s *Session) readStatusCycle(ctx context.Context, jobID string) (status, busy string, err error) {
	var lastErr error
	for attempt := 0; attempt <= s.pollRetryLimit; attempt++ {
		if cerr := s.checkpoint(ctx); cerr != nil {
			return "", "", cerr
		}

		if err := s.driver.Navigate(ctx, s.statusURL(jobID)); err != nil {
			lastErr = err
			continue
		}

		banner, err := s.readBanner(ctx)
		if err == nil && isBusyBanner(banner) {
			return "", banner, nil
		}

		if err := s.driver.WaitFor(ctx, s.selectors[config.SelStatusText], s.stepTimeout); err != nil {
			lastErr = err
			continue
		}
		text, err := s.driver.ReadText(ctx, s.selectors[config.SelStatusText])
		if err != nil {
			lastErr = err
			continue
		}

		mapped, known := s.mapStatus(text)
		if !known {
			return "", "", errors.NewAutomation(errors.AutomationUnrecognizedResponse,
				"unknown status text %q for job %s", strings.TrimSpace(text), jobID)
		}
		return mapped, "", nil
	}
	if lastErr == nil {
		lastErr = errors.NewAutomation(errors.AutomationElementNotFound,
			"status indicator never appeared for job %s", jobID)
	}
	return "", "", errors.Wrapf(lastErr, "poll retry limit reached (%d attempts)", s.pollRetryLimit+1)
}

func (s *Session) statusURL(jobID string) string {
	return s.baseURL + "/jobs/" + jobID
}

// mapStatus translates portal status text into one of the canonical
// statuses via the configured map. Matching is case-insensitive.
func (s *Session) mapStatus(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	for key, mapped := range s.statusMap {
		if strings.EqualFold(key, trimmed) {
			return mapped, true
		}
	}
	return "", false
}

// download triggers the artifact download and verifies the result. A partial
// or empty artifact is retried once, then fatal.
func (s *Session) download(ctx context.Context, jobID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if err := s.checkpoint(ctx); err != nil {
			return "", err
		}
		if attempt > 0 {
			s.log.Warnw("Retrying artifact download", "job_id", jobID, "error", lastErr)
		}

		if err := s.driver.Click(ctx, s.selectors[config.SelDownloadLink]); err != nil {
			lastErr = err
			continue
		}
		path, err := s.driver.DownloadTriggered(ctx, s.stepTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		if err := verifyArtifact(path); err != nil {
			lastErr = err
			continue
		}
		return path, nil
	}
	return "", errors.Wrap(errors.ErrDownload, lastErr.Error())
}

// verifyArtifact rejects missing or empty downloads.
func verifyArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrapf(errors.ErrDownload, "artifact missing: %s", path)
	}
	if info.Size() == 0 {
		return errors.Wrapf(errors.ErrDownload, "artifact is empty: %s", path)
	}
	return nil
}

// sleepCtx sleeps with cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return errors.Wrap(errors.ErrCancelled, ctx.Err().Error())
	case <-time.After(d):
		return nil
	}
}
