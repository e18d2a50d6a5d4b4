package resolve

import "fmt"

// Status classifies the outcome of a resolution call.
type Status uint8

const (
	// StatusNone means no error was recorded on this call.
	StatusNone Status = iota
	// StatusRetry means the failure was transient and the whole resolution
	// should be re-attempted later.
	StatusRetry
	// StatusFail means the destination cannot currently be resolved.
	StatusFail
	// StatusLoop means the only deliverable target is this system itself.
	StatusLoop
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusRetry:
		return "retry"
	case StatusFail:
		return "fail"
	case StatusLoop:
		return "loop"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Enhanced status codes (RFC 3463) recorded while resolving. First digit 4
// marks a transient condition, 5 a permanent one.
const (
	codeTempResolve  = "4.4.3" // directory server failure, transient
	codeHostNotFound = "4.4.4" // unable to route, host may exist later
	codeLocalError   = "4.3.0" // other local name service error
	codePermResolve  = "5.4.3" // directory server failure, permanent
	codePermNoHost   = "5.4.4" // host not found
	codeLoop         = "5.3.5" // system incorrectly configured, mail loops
)

// Result is the outcome of a resolution call: the ordered candidate list
// plus the accumulated diagnostic. Code and Text follow last-write-wins;
// Status keeps a recorded retry sticky against later permanent failures so a
// message that might still be deliverable is not bounced.
type Result struct {
	// Records is the final candidate list, preference-ordered ascending.
	Records []Record
	// Status classifies the call.
	Status Status
	// Code is the most recent enhanced status code, e.g. "4.4.3".
	Code string
	// Text is the most recent human-readable diagnostic.
	Text string
	// FoundSelf reports whether the local system was found among the mail
	// exchangers, even when truncation removed it from Records.
	FoundSelf bool
}

// retry records a transient failure. It always takes effect, also over an
// earlier permanent failure.
func (r *Result) retry(code, format string, args ...any) {
	r.Status = StatusRetry
	r.Code = code
	r.Text = fmt.Sprintf(format, args...)
}

// fail records a permanent failure. The code and text are updated
// unconditionally, but an already-recorded retry keeps the status.
func (r *Result) fail(code, format string, args ...any) {
	if r.Status != StatusRetry {
		r.Status = StatusFail
	}
	r.Code = code
	r.Text = fmt.Sprintf(format, args...)
}

// loop records the only-route-is-myself condition.
func (r *Result) loop(format string, args ...any) {
	r.Status = StatusLoop
	r.Code = codeLoop
	r.Text = fmt.Sprintf(format, args...)
}

// reset clears the status for a fresh resolution pass. Code and Text are
// kept; a later write overrides them anyway.
func (r *Result) reset() {
	r.Status = StatusNone
}
