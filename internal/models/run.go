// internal/models/run.go
package models

import "time"

type ModelClass string

const (
	ModelCreative ModelClass = "creative"
	ModelNuanced  ModelClass = "nuanced"
)

// Strategy is the execution shape chosen for a request.
type Strategy string

const (
	StrategySimple     Strategy = "simple"
	StrategyStaged     Strategy = "staged"
	StrategyMultiAgent Strategy = "multi_agent"
)

// Framework is the public name reported as framework_used.
func (s Strategy) Framework() string {
	switch s {
	case StrategyStaged:
		return "graph"
	case StrategyMultiAgent:
		return "crew"
	default:
		return "chain"
	}
}

// RoutingDecision is computed once per request and never changed.
type RoutingDecision struct {
	ModelClass  ModelClass  `json:"model_class"`
	ModelID     string      `json:"model_id"`
	Temperature float64     `json:"temperature"`
	Strategy    Strategy    `json:"strategy"`
	ContextRisk ContextRisk `json:"context_risk"`
}

type RunStatus string

const (
	RunRunning        RunStatus = "running"
	RunPending        RunStatus = "pending"
	RunSucceeded      RunStatus = "succeeded"
	RunFailed         RunStatus = "failed"
	RunRejectedByGate RunStatus = "rejected_by_gate"
)

// Artifact is the output of one staged step or agent role.
type Artifact struct {
	Stage      string        `json:"stage"`
	ModelClass ModelClass    `json:"model_class"`
	ModelID    string        `json:"model_id"`
	Output     string        `json:"output"`
	Attempts   int           `json:"attempts"`
	Duration   time.Duration `json:"duration"`
}

// WorkflowRun is owned by a single generate call.
type WorkflowRun struct {
	ID         string     `json:"id"`
	Strategy   Strategy   `json:"strategy"`
	Stage      string     `json:"stage"`
	Artifacts  []Artifact `json:"artifacts"`
	Candidates []Variant  `json:"candidates"`
	Confidence float64    `json:"confidence"`
	Findings   []Finding  `json:"findings,omitempty"`
	Warnings   []string   `json:"warnings,omitempty"`
	ModelsUsed []string   `json:"models_used"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
}

// Record appends an artifact and tracks the model that produced it.
func (r *WorkflowRun) Record(a Artifact) {
	r.Stage = a.Stage
	r.Artifacts = append(r.Artifacts, a)
	for _, m := range r.ModelsUsed {
		if m == a.ModelID {
			return
		}
	}
	r.ModelsUsed = append(r.ModelsUsed, a.ModelID)
}

// Warn records a soft failure.
func (r *WorkflowRun) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Fail marks the run failed at its current stage.
func (r *WorkflowRun) Fail(err error) {
	r.Status = RunFailed
	if err != nil {
		r.Error = err.Error()
	}
}

// LastOutput is the most recent artifact output, or "".
func (r *WorkflowRun) LastOutput() string {
	if len(r.Artifacts) == 0 {
		return ""
	}
	return r.Artifacts[len(r.Artifacts)-1].Output
}

type StageStatus string

const (
	StagePassed  StageStatus = "passed"
	StageFlagged StageStatus = "flagged"
	StageFailed  StageStatus = "failed"
	StageSkipped StageStatus = "skipped"
)

// Finding is one observation made by a gate stage about a candidate.
type Finding struct {
	Stage     string `json:"stage"`
	Candidate int    `json:"candidate"`
	Rule      string `json:"rule"`
	Value     string `json:"value,omitempty"`
	Removed   bool   `json:"removed"`
}

type StageResult struct {
	Stage    string      `json:"stage"`
	Status   StageStatus `json:"status"`
	Messages []string    `json:"messages,omitempty"`
	Findings []Finding   `json:"findings,omitempty"`
}

// GateReport lists stage results in execution order.
type GateReport struct {
	Stages []StageResult `json:"stages"`
}

// Passed reports whether no stage failed.
func (g GateReport) Passed() bool {
	return g.FailedStage() == nil
}

// FailedStage returns the first failed stage, if any.
func (g GateReport) FailedStage() *StageResult {
	for i := range g.Stages {
		if g.Stages[i].Status == StageFailed {
			return &g.Stages[i]
		}
	}
	return nil
}

// Stage returns the result for name, if it ran.
func (g GateReport) Stage(name string) (StageResult, bool) {
	for _, s := range g.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}
