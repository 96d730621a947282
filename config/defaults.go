package config

import (
	"github.com/spf13/viper"
)

// Selector keys the automation session looks up. Values are CSS selectors
// supplied at integration time; defaults match the AlphaFold Server flow.
const (
	SelAuthMarker    = "auth_marker"    // element present only after authentication
	SelLoginEmail    = "login_email"    // email input on the sign-in page
	SelLoginPassword = "login_password" // password input on the sign-in page
	SelLoginSubmit   = "login_submit"   // sign-in button
	SelNewJob        = "new_job"        // link/button to the submission form
	SelProteinInput  = "protein_input"  // protein sequence textarea
	SelDNAInput      = "dna_input"      // DNA sequence textarea
	SelJobNameInput  = "job_name_input" // job name field
	SelSubmitButton  = "submit_button"  // final submit action
	SelJobIDText     = "job_id_text"    // element carrying the assigned job id
	SelErrorBanner   = "error_banner"   // portal error banner
	SelStatusText    = "status_text"    // status indicator on the jobs page
	SelDownloadLink  = "download_link"  // download action for a completed job
)

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "genefold.db")

	// NCBI defaults. Anonymous E-utilities traffic is limited to 3 req/s;
	// an API key raises that to 10.
	v.SetDefault("ncbi.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("ncbi.ret_max", 10)
	v.SetDefault("ncbi.timeout_seconds", 30)
	v.SetDefault("ncbi.max_retries", 3)
	v.SetDefault("ncbi.requests_per_second", 3)

	// ROI defaults. The built-in rule targets the E-box motif with 10 bases
	// of context either side, matching what the pipeline submits by default.
	v.SetDefault("roi.overlap_policy", "merge-overlaps")
	v.SetDefault("roi.confidence_threshold", 0.8)
	v.SetDefault("roi.context_size", 10)

	// Portal defaults
	v.SetDefault("portal.base_url", "https://alphafoldserver.com")
	v.SetDefault("portal.headless", true)
	v.SetDefault("portal.download_dir", "results")
	v.SetDefault("portal.step_timeout_seconds", 20)
	v.SetDefault("portal.auth_retry_limit", 3)
	v.SetDefault("portal.submit_retry_limit", 3)
	v.SetDefault("portal.poll_retry_limit", 3)
	v.SetDefault("portal.poll_interval_seconds", 300)
	v.SetDefault("portal.poll_timeout_minutes", 120)
	v.SetDefault("portal.backoff_seconds", 30)
	v.SetDefault("portal.selectors", map[string]string{
		SelAuthMarker:    "gdm-af-side-nav",
		SelLoginEmail:    "input[type=email]",
		SelLoginPassword: "input[type=password]",
		SelLoginSubmit:   "button[type=submit]",
		SelNewJob:        "a[href*='request']",
		SelProteinInput:  "textarea[aria-label='Protein sequence']",
		SelDNAInput:      "textarea[aria-label='DNA sequence']",
		SelJobNameInput:  "input[name='jobName']",
		SelSubmitButton:  "button.submit-job",
		SelJobIDText:     ".job-id",
		SelErrorBanner:   ".error-banner",
		SelStatusText:    ".job-status",
		SelDownloadLink:  "a.download-result",
	})
	v.SetDefault("portal.status_map", map[string]string{
		"Queued":     "queued",
		"Pending":    "queued",
		"Running":    "running",
		"In progress": "running",
		"Completed":  "complete",
		"Succeeded":  "complete",
		"Failed":     "failed",
		"Error":      "failed",
	})

	// Runner defaults
	v.SetDefault("runner.workers", 1)
	v.SetDefault("runner.poll_interval_seconds", 5)

	// Server defaults
	v.SetDefault("server.addr", "127.0.0.1:8764")
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"http://127.0.0.1",
	})
}

// BindSensitiveEnvVars explicitly binds credentials to environment variables
// so they never need to live in a config file. They are also never logged.
func BindSensitiveEnvVars(v *viper.Viper) {
	v.BindEnv("ncbi.api_key", "GENEFOLD_NCBI_API_KEY")
	v.BindEnv("ncbi.email", "GENEFOLD_NCBI_EMAIL")
	v.BindEnv("portal.email", "GENEFOLD_PORTAL_EMAIL")
	v.BindEnv("portal.password", "GENEFOLD_PORTAL_PASSWORD")
}
