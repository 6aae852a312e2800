package domain

import (
	"errors"
	"testing"
)

func TestNewSyncTask(t *testing.T) {
	task := NewSyncTask(TaskTypeNotionSync, []int64{4, 1, 7})

	if task.Status != TaskStatusPending {
		t.Errorf("expected pending, got %s", task.Status)
	}
	if task.TotalRecords != 3 {
		t.Errorf("expected total 3, got %d", task.TotalRecords)
	}
	if task.StartedAt != nil || task.CompletedAt != nil {
		t.Error("new task should have no timestamps")
	}
}

func TestNewBatchSyncTask(t *testing.T) {
	task := NewBatchSyncTask(120)
	if task.Type != TaskTypeLeetCodeBatchSync || task.TotalRecords != 120 || task.RecordIDs != nil {
		t.Errorf("unexpected batch task %+v", task)
	}
}

func TestSyncTaskCountersNeverExceedTotal(t *testing.T) {
	task := NewSyncTask(TaskTypeGitHubSync, []int64{1, 2})

	if err := task.RecordSynced(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := task.RecordFailed(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := task.RecordSynced(); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
	if task.Processed() != task.TotalRecords || task.Remaining() != 0 {
		t.Errorf("expected all processed, got %d/%d", task.Processed(), task.TotalRecords)
	}
}

func TestSyncTaskFinalStatus(t *testing.T) {
	tests := []struct {
		name   string
		total  int
		synced int
		failed int
		want   TaskStatus
	}{
		{"all synced", 3, 3, 0, TaskStatusCompleted},
		{"some failed", 3, 1, 2, TaskStatusCompleted},
		{"all failed", 3, 0, 3, TaskStatusFailed},
		{"empty batch", 0, 0, 0, TaskStatusCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &SyncTask{TotalRecords: tt.total, SyncedRecords: tt.synced, FailedRecords: tt.failed}
			if got := task.FinalStatus(); got != tt.want {
				t.Errorf("FinalStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSyncTaskMarkRunningKeepsStartedAt(t *testing.T) {
	task := NewSyncTask(TaskTypeAIAnalysis, []int64{1})
	task.MarkRunning()
	first := *task.StartedAt

	task.MarkFailed("provider build failed")
	if task.Error == "" || task.CompletedAt == nil {
		t.Error("MarkFailed should set the error and completion time")
	}

	task.MarkRunning()
	if !task.StartedAt.Equal(first) {
		t.Error("StartedAt should survive a restart")
	}
	if task.CompletedAt != nil || task.Error != "" {
		t.Error("MarkRunning should clear the previous outcome")
	}
}

func TestSyncTaskGuards(t *testing.T) {
	tests := []struct {
		status    TaskStatus
		failed    int
		canPause  bool
		canResume bool
		canRetry  bool
		canDelete bool
	}{
		{TaskStatusPending, 0, false, false, false, true},
		{TaskStatusRunning, 0, true, false, false, false},
		{TaskStatusPaused, 1, false, true, false, true},
		{TaskStatusFailed, 2, false, false, true, true},
		{TaskStatusCompleted, 0, false, false, false, true},
		{TaskStatusCompleted, 1, false, false, true, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			task := &SyncTask{Status: tt.status, TotalRecords: 3, FailedRecords: tt.failed}
			if task.CanPause() != tt.canPause {
				t.Errorf("CanPause() = %v", task.CanPause())
			}
			if task.CanResume() != tt.canResume {
				t.Errorf("CanResume() = %v", task.CanResume())
			}
			if task.CanRetry() != tt.canRetry {
				t.Errorf("CanRetry() = %v", task.CanRetry())
			}
			if task.CanDelete() != tt.canDelete {
				t.Errorf("CanDelete() = %v", task.CanDelete())
			}
		})
	}
}

func TestTaskTypeMapping(t *testing.T) {
	tests := []struct {
		taskType TaskType
		channel  Channel
		provider ProviderType
	}{
		{TaskTypeGitHubSync, ChannelGitHub, ProviderGitHub},
		{TaskTypeLeetCodeBatchSync, ChannelOJ, ProviderLeetCode},
		{TaskTypeLeetCodeDetailSync, ChannelOJ, ProviderLeetCode},
		{TaskTypeNotionSync, ChannelNotion, ProviderNotion},
		{TaskTypeAIAnalysis, ChannelAI, ProviderGemini},
		{TaskTypeGeminiSync, ChannelAI, ProviderGemini},
	}

	for _, tt := range tests {
		t.Run(string(tt.taskType), func(t *testing.T) {
			if !tt.taskType.IsValid() {
				t.Error("expected valid task type")
			}
			if got := tt.taskType.Channel(); got != tt.channel {
				t.Errorf("Channel() = %s, want %s", got, tt.channel)
			}
			if got := tt.taskType.Provider(); got != tt.provider {
				t.Errorf("Provider() = %s, want %s", got, tt.provider)
			}
		})
	}

	if TaskType("dropbox_sync").IsValid() {
		t.Error("unexpected valid task type")
	}
	if len(TaskTypesFor(ChannelAI)) != 2 || len(TaskTypesFor(ChannelOJ)) != 2 {
		t.Error("expected two task types for the ai and oj channels")
	}
}

func TestParseTaskAction(t *testing.T) {
	tests := []struct {
		in   string
		want TaskAction
	}{
		{"stopped", TaskActionPause},
		{"paused", TaskActionPause},
		{"running", TaskActionResume},
		{"retry", TaskActionRetry},
	}
	for _, tt := range tests {
		got, err := ParseTaskAction(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseTaskAction(%q) = %q, %v", tt.in, got, err)
		}
	}

	if _, err := ParseTaskAction("completed"); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
}

func TestNewTaskItemsPreservesOrder(t *testing.T) {
	items := NewTaskItems(8, []int64{5, 2, 9})
	for i, want := range []int64{5, 2, 9} {
		if items[i].RecordID != want || items[i].Position != i || items[i].Status != TaskItemPending {
			t.Errorf("item %d = %+v", i, items[i])
		}
	}
}

func TestTaskStats(t *testing.T) {
	var stats TaskStats
	stats.Add(TaskStatusRunning, 2)
	stats.Add(TaskStatusPaused, 1)
	stats.Add(TaskStatusFailed, 3)

	if stats.Total != 6 || stats.Running != 2 || stats.Paused != 1 || stats.Failed != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestTaskFilterMatches(t *testing.T) {
	task := &SyncTask{Type: TaskTypeGitHubSync, Status: TaskStatusPaused}

	if !(TaskFilter{}).Matches(task) {
		t.Error("empty filter should match")
	}
	if !(TaskFilter{Type: TaskTypeGitHubSync, Status: TaskStatusPaused}).Matches(task) {
		t.Error("expected match")
	}
	if (TaskFilter{Status: TaskStatusRunning}).Matches(task) {
		t.Error("unexpected match on status")
	}
}
