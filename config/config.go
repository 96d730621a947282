// Package config manages genefold configuration via Viper with TOML files
// and environment overrides.
package config

// Config is the root genefold configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	NCBI     NCBIConfig     `mapstructure:"ncbi"`
	ROI      ROIConfig      `mapstructure:"roi"`
	Portal   PortalConfig   `mapstructure:"portal"`
	Runner   RunnerConfig   `mapstructure:"runner"`
	Server   ServerConfig   `mapstructure:"server"`
}

// DatabaseConfig configures the SQLite job database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// NCBIConfig configures the sequence database client (NCBI E-utilities).
type NCBIConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	Email             string  `mapstructure:"email"`    // required by NCBI usage policy
	APIKey            string  `mapstructure:"api_key"`  // env-only: GENEFOLD_NCBI_API_KEY
	RetMax            int     `mapstructure:"ret_max"`  // max candidates per search
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	MaxRetries        int     `mapstructure:"max_retries"` // transport retries per request
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// ROIConfig configures region-of-interest detection.
type ROIConfig struct {
	RulesPath           string  `mapstructure:"rules_path"`           // JSON rule file; empty = built-in default rule
	OverlapPolicy       string  `mapstructure:"overlap_policy"`       // "merge-overlaps" or "keep-all"
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"` // hits below are discarded
	ContextSize         int     `mapstructure:"context_size"`         // bases of context either side of a motif hit
}

// PortalConfig configures the prediction portal automation session.
type PortalConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	Email    string `mapstructure:"email"`    // env-only: GENEFOLD_PORTAL_EMAIL
	Password string `mapstructure:"password"` // env-only: GENEFOLD_PORTAL_PASSWORD

	UserDataDir string `mapstructure:"user_data_dir"` // persistent browser profile; empty = throwaway
	Headless    bool   `mapstructure:"headless"`
	DownloadDir string `mapstructure:"download_dir"`

	StepTimeoutSeconds  int `mapstructure:"step_timeout_seconds"`  // bound on every waitFor
	AuthRetryLimit      int `mapstructure:"auth_retry_limit"`      // authentication attempts before failing
	SubmitRetryLimit    int `mapstructure:"submit_retry_limit"`    // busy/rate-limited re-submits before failing
	PollRetryLimit      int `mapstructure:"poll_retry_limit"`      // transient read failures per poll cycle
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"` // status refresh cadence
	PollTimeoutMinutes  int `mapstructure:"poll_timeout_minutes"`  // overall polling deadline
	BackoffSeconds      int `mapstructure:"backoff_seconds"`       // base backoff after a busy banner

	Selectors map[string]string `mapstructure:"selectors"`  // portal DOM contract, overridable per deployment
	StatusMap map[string]string `mapstructure:"status_map"` // portal status text -> queued|running|complete|failed
}

// RunnerConfig configures the background job runner.
type RunnerConfig struct {
	Workers             int `mapstructure:"workers"`
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
}

// ServerConfig configures the websocket event server.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}
