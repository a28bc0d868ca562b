package jobs

import "encoding/json"

// Outcome is the terminal state of a run.
type Outcome string

// Outcomes.
const (
	OutcomeOK      Outcome = "ok"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// Reason explains a skipped run.
type Reason string

// Skip reasons.
const (
	ReasonDisabled   Reason = "disabled"
	ReasonAlreadyRan Reason = "already-ran"
	ReasonLocked     Reason = "locked"
)

// Result is what Runner.Run returns. It marshals to one of three shapes:
//
//	{"skipped": true, "reason": "...", "runKey": "..."}
//	{"ok": true, "dryRun": false, "processed": 3, "preview": [...], "runKey": "..."}
//	{"ok": false, "error": "..."}
type Result struct {
	Job       Type
	Outcome   Outcome
	Reason    Reason
	DryRun    bool
	Processed int
	Preview   []Item
	RunKey    string
	Error     string
}

// MarshalJSON implements json.Marshaler.
func (r Result) MarshalJSON() ([]byte, error) {
	switch r.Outcome {
	case OutcomeSkipped:
		return json.Marshal(struct {
			Skipped bool   `json:"skipped"`
			Reason  Reason `json:"reason"`
			RunKey  string `json:"runKey,omitempty"`
		}{true, r.Reason, r.RunKey})
	case OutcomeOK:
		preview := r.Preview
		if preview == nil {
			preview = []Item{}
		}
		return json.Marshal(struct {
			OK        bool   `json:"ok"`
			DryRun    bool   `json:"dryRun"`
			Processed int    `json:"processed"`
			Preview   []Item `json:"preview"`
			RunKey    string `json:"runKey"`
		}{true, r.DryRun, r.Processed, preview, r.RunKey})
	default:
		return json.Marshal(struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}{false, r.Error})
	}
}

func skipped(job Type, reason Reason, runKey string) Result {
	return Result{Job: job, Outcome: OutcomeSkipped, Reason: reason, RunKey: runKey}
}

func failed(job Type, runKey string, err error) Result {
	return Result{Job: job, Outcome: OutcomeError, RunKey: runKey, Error: err.Error()}
}
