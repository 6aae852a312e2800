package domain

import (
	"fmt"
	"strings"
	"time"
)

// Submission holds the static fields of an OJ submission.
// They are written once when a record is created and never touched by sync.
type Submission struct {
	OJType          string    `json:"oj_type"`
	SubmissionID    string    `json:"submission_id"`
	ProblemID       int64     `json:"problem_id"`
	ProblemTitle    string    `json:"problem_title"`
	ProblemSlug     string    `json:"problem_slug"`
	Language        string    `json:"language"`
	ExecutionResult string    `json:"execution_result"`
	Code            string    `json:"code"`
	RuntimeMs       int       `json:"runtime_ms"`
	MemoryKB        int       `json:"memory_kb"`
	SubmitTime      time.Time `json:"submit_time"`
}

// Validate checks the submission has the fields a record needs
func (s *Submission) Validate() error {
	var missing []string
	if strings.TrimSpace(s.OJType) == "" {
		missing = append(missing, "oj_type")
	}
	if strings.TrimSpace(s.SubmissionID) == "" {
		missing = append(missing, "submission_id")
	}
	if strings.TrimSpace(s.Language) == "" {
		missing = append(missing, "language")
	}
	if s.SubmitTime.IsZero() {
		missing = append(missing, "submit_time")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}

// AIAnalysis is the structured result of the AI channel
type AIAnalysis struct {
	Summary                string             `json:"summary"`
	TimeComplexity         string             `json:"time_complexity"`
	SpaceComplexity        string             `json:"space_complexity"`
	AlgorithmType          string             `json:"algorithm_type"`
	SolutionTypes          []string           `json:"solution_types,omitempty"`
	StepAnalysis           []string           `json:"step_analysis,omitempty"`
	ImprovementSuggestions []string           `json:"improvement_suggestions,omitempty"`
	EdgeCases              []string           `json:"edge_cases,omitempty"`
	RiskAreas              []string           `json:"risk_areas,omitempty"`
	LearningPoints         []string           `json:"learning_points,omitempty"`
	RelatedProblems        []string           `json:"related_problems,omitempty"`
	Scores                 map[string]float64 `json:"scores,omitempty"`
	Confidence             float64            `json:"confidence"`
}

// ChannelResult is what a provider returns for one successfully synced record
type ChannelResult struct {
	GitFilePath string      `json:"git_file_path,omitempty"`
	NotionURL   string      `json:"notion_url,omitempty"`
	AIAnalysis  *AIAnalysis `json:"ai_analysis,omitempty"`
}

// Validate checks the result carries the field owned by ch
func (r *ChannelResult) Validate(ch Channel) error {
	switch ch {
	case ChannelGitHub:
		if r == nil || r.GitFilePath == "" {
			return fmt.Errorf("%w: github result missing git_file_path", ErrProviderError)
		}
	case ChannelNotion:
		if r == nil || r.NotionURL == "" {
			return fmt.Errorf("%w: notion result missing notion_url", ErrProviderError)
		}
	case ChannelAI:
		if r == nil || r.AIAnalysis == nil {
			return fmt.Errorf("%w: ai result missing ai_analysis", ErrProviderError)
		}
	}
	return nil
}

// Record is a submission together with its four channel statuses
type Record struct {
	ID int64 `json:"id"`
	Submission

	OJSyncStatus     ChannelStatus `json:"oj_sync_status"`
	GitHubSyncStatus ChannelStatus `json:"github_sync_status"`
	AISyncStatus     ChannelStatus `json:"ai_sync_status"`
	NotionSyncStatus ChannelStatus `json:"notion_sync_status"`

	// Result fields are non-nil only while the owning channel is synced
	GitFilePath *string     `json:"git_file_path"`
	AIAnalysis  *AIAnalysis `json:"ai_analysis"`
	NotionURL   *string     `json:"notion_url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRecord creates a record with every channel pending
func NewRecord(sub Submission) *Record {
	now := time.Now()
	return &Record{
		Submission:       sub,
		OJSyncStatus:     ChannelStatusPending,
		GitHubSyncStatus: ChannelStatusPending,
		AISyncStatus:     ChannelStatusPending,
		NotionSyncStatus: ChannelStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ChannelStatus returns the status of ch
func (r *Record) ChannelStatus(ch Channel) ChannelStatus {
	switch ch {
	case ChannelOJ:
		return r.OJSyncStatus
	case ChannelGitHub:
		return r.GitHubSyncStatus
	case ChannelAI:
		return r.AISyncStatus
	case ChannelNotion:
		return r.NotionSyncStatus
	}
	return ""
}

// CanStartSync checks both channel preconditions: the channel is pending or
// failed, and derived channels require OJ detail to be completed.
func (r *Record) CanStartSync(ch Channel) error {
	if !ch.IsValid() {
		return fmt.Errorf("%w: unknown channel %q", ErrValidation, ch)
	}
	if ch.IsDerived() && r.OJSyncStatus != ChannelStatusCompleted {
		return NewRecordError(ErrPreconditionNotMet, "oj sync not completed", r.ID)
	}
	if s := r.ChannelStatus(ch); !s.CanStart() {
		return NewRecordError(ErrPreconditionNotMet,
			fmt.Sprintf("%s channel is %s", ch, s), r.ID)
	}
	return nil
}

// SetChannel moves ch to status and keeps the result field in step with it:
// the field is set from result on success and cleared otherwise.
func (r *Record) SetChannel(ch Channel, status ChannelStatus, result *ChannelResult) {
	success := status.IsSuccess()
	switch ch {
	case ChannelOJ:
		r.OJSyncStatus = status
	case ChannelGitHub:
		r.GitHubSyncStatus = status
		r.GitFilePath = nil
		if success && result != nil {
			path := result.GitFilePath
			r.GitFilePath = &path
		}
	case ChannelAI:
		r.AISyncStatus = status
		r.AIAnalysis = nil
		if success && result != nil {
			r.AIAnalysis = result.AIAnalysis
		}
	case ChannelNotion:
		r.NotionSyncStatus = status
		r.NotionURL = nil
		if success && result != nil {
			u := result.NotionURL
			r.NotionURL = &u
		}
	}
	r.UpdatedAt = time.Now()
}

// RecordSort orders record listings by submit time
type RecordSort string

const (
	SortAscending  RecordSort = "asc"
	SortDescending RecordSort = "desc"
)

// RecordFilter selects records. Each status list matches any of its values;
// an empty list does not filter.
type RecordFilter struct {
	OJStatuses     []ChannelStatus
	GitHubStatuses []ChannelStatus
	AIStatuses     []ChannelStatus
	NotionStatuses []ChannelStatus
	ProblemID      int64
	Language       string
	Sort           RecordSort
	Limit          int
	Offset         int
}

// StatusesFor returns the filter statuses for ch
func (f *RecordFilter) StatusesFor(ch Channel) []ChannelStatus {
	switch ch {
	case ChannelOJ:
		return f.OJStatuses
	case ChannelGitHub:
		return f.GitHubStatuses
	case ChannelAI:
		return f.AIStatuses
	case ChannelNotion:
		return f.NotionStatuses
	}
	return nil
}

// SetStatuses replaces the filter statuses for ch
func (f *RecordFilter) SetStatuses(ch Channel, statuses []ChannelStatus) {
	switch ch {
	case ChannelOJ:
		f.OJStatuses = statuses
	case ChannelGitHub:
		f.GitHubStatuses = statuses
	case ChannelAI:
		f.AIStatuses = statuses
	case ChannelNotion:
		f.NotionStatuses = statuses
	}
}

// Matches reports whether r satisfies the filter, ignoring paging
func (f *RecordFilter) Matches(r *Record) bool {
	for _, ch := range AllChannels() {
		statuses := f.StatusesFor(ch)
		if len(statuses) == 0 {
			continue
		}
		found := false
		for _, s := range statuses {
			if r.ChannelStatus(ch) == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ProblemID != 0 && r.ProblemID != f.ProblemID {
		return false
	}
	if f.Language != "" && !strings.EqualFold(r.Language, f.Language) {
		return false
	}
	return true
}

// RecordDetail is a record with the apparent status of each channel
type RecordDetail struct {
	*Record
	Channels []ChannelView `json:"channels"`
}
