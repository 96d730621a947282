package portal

// State is one step of the automation session. Done and Failed are terminal
// for a given attempt; Failed is reachable from every non-terminal state.
type State string

const (
	StateIdle             State = "Idle"
	StateAuthenticating   State = "Authenticating"
	StateNavigatingToForm State = "NavigatingToForm"
	StateFillingForm      State = "FillingForm"
	StateSubmitting       State = "Submitting"
	StateAwaitingJobID    State = "AwaitingJobId"
	StatePolling          State = "Polling"
	StateDownloading      State = "Downloading"
	StateDone             State = "Done"
	StateFailed           State = "Failed"
)

// Portal job statuses as mapped from the status indicator text.
const (
	portalQueued   = "queued"
	portalRunning  = "running"
	portalComplete = "complete"
	portalFailed   = "failed"
)
