package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestRecord() *Record {
	r := NewRecord(Submission{
		OJType:       "leetcode",
		SubmissionID: "s-1",
		ProblemID:    1,
		Language:     "go",
		SubmitTime:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	r.ID = 42
	return r
}

func TestSubmissionValidate(t *testing.T) {
	sub := newTestRecord().Submission
	if err := sub.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub.SubmissionID = " "
	sub.SubmitTime = time.Time{}
	err := sub.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err.Error() != "validation error: missing submission_id, submit_time" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestRecordCanStartSync(t *testing.T) {
	r := newTestRecord()

	if err := r.CanStartSync(ChannelOJ); err != nil {
		t.Errorf("oj should start from pending: %v", err)
	}

	err := r.CanStartSync(ChannelNotion)
	if !errors.Is(err, ErrPreconditionNotMet) {
		t.Fatalf("expected ErrPreconditionNotMet, got %v", err)
	}
	if ids := RecordIDsOf(err); len(ids) != 1 || ids[0] != 42 {
		t.Errorf("expected record id 42, got %v", ids)
	}

	r.OJSyncStatus = ChannelStatusCompleted
	if err := r.CanStartSync(ChannelNotion); err != nil {
		t.Errorf("notion should start once oj completed: %v", err)
	}
	if err := r.CanStartSync(ChannelOJ); !errors.Is(err, ErrPreconditionNotMet) {
		t.Errorf("completed oj cannot resync, got %v", err)
	}

	r.GitHubSyncStatus = ChannelStatusSynced
	if err := r.CanStartSync(ChannelGitHub); !errors.Is(err, ErrPreconditionNotMet) {
		t.Errorf("synced channel is terminal, got %v", err)
	}
	if err := r.CanStartSync(Channel("slack")); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestRecordSetChannelKeepsResultInStep(t *testing.T) {
	r := newTestRecord()
	result := &ChannelResult{
		GitFilePath: "leetcode/1.go",
		NotionURL:   "https://notion.so/p",
		AIAnalysis:  &AIAnalysis{Summary: "two pointers"},
	}

	r.SetChannel(ChannelGitHub, ChannelStatusSynced, result)
	r.SetChannel(ChannelNotion, ChannelStatusSynced, result)
	r.SetChannel(ChannelAI, ChannelStatusSynced, result)

	if r.GitFilePath == nil || *r.GitFilePath != "leetcode/1.go" {
		t.Error("expected git file path")
	}
	if r.NotionURL == nil || r.AIAnalysis == nil {
		t.Error("expected notion url and ai analysis")
	}

	r.SetChannel(ChannelGitHub, ChannelStatusFailed, result)
	r.SetChannel(ChannelAI, ChannelStatusSyncing, nil)
	if r.GitFilePath != nil {
		t.Error("failed channel must not keep its result")
	}
	if r.AIAnalysis != nil {
		t.Error("syncing channel must not keep its result")
	}
	if r.NotionURL == nil {
		t.Error("other channels are untouched")
	}
}

func TestChannelResultValidate(t *testing.T) {
	tests := []struct {
		ch      Channel
		result  *ChannelResult
		wantErr bool
	}{
		{ChannelOJ, nil, false},
		{ChannelGitHub, &ChannelResult{}, true},
		{ChannelGitHub, &ChannelResult{GitFilePath: "a.go"}, false},
		{ChannelNotion, nil, true},
		{ChannelAI, &ChannelResult{AIAnalysis: &AIAnalysis{}}, false},
	}
	for _, tt := range tests {
		err := tt.result.Validate(tt.ch)
		if tt.wantErr != (err != nil) {
			t.Errorf("Validate(%s) = %v", tt.ch, err)
		}
		if err != nil && !errors.Is(err, ErrProviderError) {
			t.Errorf("expected ErrProviderError, got %v", err)
		}
	}
}

func TestRecordFilterMatches(t *testing.T) {
	r := newTestRecord()
	r.OJSyncStatus = ChannelStatusCompleted
	r.GitHubSyncStatus = ChannelStatusFailed

	tests := []struct {
		name   string
		filter RecordFilter
		want   bool
	}{
		{"empty", RecordFilter{}, true},
		{"any of", RecordFilter{GitHubStatuses: []ChannelStatus{ChannelStatusPending, ChannelStatusFailed}}, true},
		{"all channels anded", RecordFilter{OJStatuses: []ChannelStatus{ChannelStatusCompleted}, AIStatuses: []ChannelStatus{ChannelStatusSynced}}, false},
		{"language case-insensitive", RecordFilter{Language: "Go"}, true},
		{"problem", RecordFilter{ProblemID: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(r); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}
