package jobs

// ProgressRecord is the externally visible state of the thumbnail pipeline.
// Written only by the active job driver; readers get a copy via
// Scheduler.Snapshot.
type ProgressRecord struct {
	Busy    bool   `json:"busy"`
	Task    string `json:"task"`
	File    string `json:"file"`
	Percent int    `json:"percent"`
	Status  string `json:"status"`
	JobID   string `json:"job_id,omitempty"`
}

// Percent bands each stage maps its own progress into.
const (
	pctNormalizeEnd = 15
	pctBoundsEnd    = 30
	pctRenderEnd    = 85
	pctDone         = 100
)
