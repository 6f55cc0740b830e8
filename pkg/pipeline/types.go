package pipeline

import (
	"encoding/json"
	"time"

	"github.com/pressops/wpdeploy/pkg/deployerr"
)

type State string

const (
	Initializing        State = "Initializing"
	CredentialsReady    State = "CredentialsReady"
	DatabaseProvisioned State = "DatabaseProvisioned"
	FilesystemPrepared  State = "FilesystemPrepared"
	ArchivesUploaded    State = "ArchivesUploaded"
	CoreInstalled       State = "CoreInstalled"
	PluginsConfigured   State = "PluginsConfigured"
	LicenseActivated    State = "LicenseActivated"
	Finalized           State = "Finalized"
	Failed              State = "Failed"
)

// States lists every non-terminal-failure state in the order a deployment passes through them.
var States = []State{
	Initializing,
	CredentialsReady,
	DatabaseProvisioned,
	FilesystemPrepared,
	ArchivesUploaded,
	CoreInstalled,
	PluginsConfigured,
	LicenseActivated,
	Finalized,
}

type StageStatus string

const (
	StageSucceeded StageStatus = "succeeded"
	StageFailed    StageStatus = "failed"
	StageSkipped   StageStatus = "skipped"
)

type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Duration is a time.Duration that reads and writes as "1.5s" in JSON, rounded to milliseconds.
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).Round(time.Millisecond).String()
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// StageResult is the outcome of one unit of pipeline work. State is the state the work leads into.
type StageResult struct {
	State    State          `json:"state"`
	Name     string         `json:"name"`
	Status   StageStatus    `json:"status"`
	Message  string         `json:"message"`
	Kind     deployerr.Kind `json:"error_kind,omitempty"`
	Detail   string         `json:"detail,omitempty"`
	Duration Duration       `json:"duration"`
}

// Credentials are handed to the operator once, in the result of a successful deployment.
type Credentials struct {
	DatabaseName     string `json:"db_name"`
	DatabaseUser     string `json:"db_user"`
	DatabasePassword string `json:"db_password"`
	AdminUser        string `json:"admin_user"`
	AdminPassword    string `json:"admin_password"`
	TablePrefix      string `json:"table_prefix"`
}

type Result struct {
	Status       Status        `json:"status"`
	DeploymentID string        `json:"deployment_id"`
	Domain       string        `json:"domain"`
	SiteURL      string        `json:"site_url,omitempty"`
	AdminURL     string        `json:"admin_url,omitempty"`
	Credentials  *Credentials  `json:"credentials,omitempty"`
	Stages       []StageResult `json:"stages"`
	Transitions  []State       `json:"transitions"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     Duration      `json:"duration"`
}

func (r *Result) Succeeded() bool {
	return r != nil && r.Status == StatusSucceeded
}

// Failure returns the stage that stopped a failed deployment.
func (r *Result) Failure() *StageResult {
	if r == nil || r.Status != StatusFailed {
		return nil
	}
	for i := len(r.Stages) - 1; i >= 0; i-- {
		if r.Stages[i].Status == StageFailed && r.Stages[i].Kind != deployerr.KindBestEffort {
			return &r.Stages[i]
		}
	}
	return nil
}

// StagesIn returns the results recorded for state, in order.
func (r *Result) StagesIn(state State) []StageResult {
	results := make([]StageResult, 0)
	for _, stage := range r.Stages {
		if stage.State == state {
			results = append(results, stage)
		}
	}
	return results
}
