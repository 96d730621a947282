package config

import (
	"github.com/helical/genefold/errors"
)

// Validate checks a loaded configuration for values that would make the
// pipeline misbehave at runtime. Credentials are deliberately not required
// here: search/fetch/roi work without portal access.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database.path must not be empty")
	}

	if c.NCBI.BaseURL == "" {
		return errors.New("ncbi.base_url must not be empty")
	}
	if c.NCBI.RetMax <= 0 {
		return errors.Newf("ncbi.ret_max must be positive, got %d", c.NCBI.RetMax)
	}
	if c.NCBI.RequestsPerSecond <= 0 {
		return errors.Newf("ncbi.requests_per_second must be positive, got %v", c.NCBI.RequestsPerSecond)
	}

	switch c.ROI.OverlapPolicy {
	case "merge-overlaps", "keep-all":
	default:
		return errors.Newf("roi.overlap_policy must be \"merge-overlaps\" or \"keep-all\", got %q", c.ROI.OverlapPolicy)
	}
	if c.ROI.ConfidenceThreshold < 0 || c.ROI.ConfidenceThreshold > 1 {
		return errors.Newf("roi.confidence_threshold must be in [0,1], got %v", c.ROI.ConfidenceThreshold)
	}
	if c.ROI.ContextSize < 0 {
		return errors.Newf("roi.context_size must not be negative, got %d", c.ROI.ContextSize)
	}

	if c.Portal.BaseURL == "" {
		return errors.New("portal.base_url must not be empty")
	}
	if c.Portal.StepTimeoutSeconds <= 0 {
		return errors.Newf("portal.step_timeout_seconds must be positive, got %d", c.Portal.StepTimeoutSeconds)
	}
	for _, bound := range []struct {
		name  string
		value int
	}{
		{"portal.auth_retry_limit", c.Portal.AuthRetryLimit},
		{"portal.submit_retry_limit", c.Portal.SubmitRetryLimit},
		{"portal.poll_retry_limit", c.Portal.PollRetryLimit},
		{"portal.poll_interval_seconds", c.Portal.PollIntervalSeconds},
		{"portal.poll_timeout_minutes", c.Portal.PollTimeoutMinutes},
	} {
		if bound.value <= 0 {
			return errors.Newf("%s must be positive, got %d", bound.name, bound.value)
		}
	}

	if c.Runner.Workers <= 0 {
		return errors.Newf("runner.workers must be positive, got %d", c.Runner.Workers)
	}
	if c.Runner.PollIntervalSeconds <= 0 {
		return errors.Newf("runner.poll_interval_seconds must be positive, got %d", c.Runner.PollIntervalSeconds)
	}

	return nil
}
