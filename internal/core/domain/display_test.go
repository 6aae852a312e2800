package domain

import "testing"

func TestStatusTableComplete(t *testing.T) {
	seen := map[string]bool{}
	for d := DisplayStatus(0); d < displayStatusCount; d++ {
		info := d.Info()
		if info.Name == "" || info.Label == "" || info.Tone == "" {
			t.Errorf("display status %d has an incomplete entry: %+v", int(d), info)
		}
		if seen[info.Name] {
			t.Errorf("duplicate display name %q", info.Name)
		}
		seen[info.Name] = true
	}
	for _, s := range AllChannelStatuses() {
		if displayOf(s).String() != string(s) {
			t.Errorf("channel status %s maps to %s", s, displayOf(s))
		}
	}
}

func TestDisplayStatusOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	_ = displayStatusCount.Info()
}

func TestApparentStatus(t *testing.T) {
	tests := []struct {
		name   string
		status ChannelStatus
		owner  *TaskRef
		want   DisplayStatus
	}{
		{"no owner", ChannelStatusFailed, nil, DisplayFailed},
		{"failed queued for retry", ChannelStatusFailed, &TaskRef{TaskStatus: TaskStatusRunning, ItemStatus: TaskItemPending}, DisplayRetry},
		{"failed in pending task", ChannelStatusFailed, &TaskRef{TaskStatus: TaskStatusPending, ItemStatus: TaskItemPending}, DisplayRetry},
		{"pending in paused task", ChannelStatusPending, &TaskRef{TaskStatus: TaskStatusPaused, ItemStatus: TaskItemPending}, DisplayPaused},
		{"failed in paused task", ChannelStatusFailed, &TaskRef{TaskStatus: TaskStatusPaused, ItemStatus: TaskItemPending}, DisplayPaused},
		{"pending in running task", ChannelStatusPending, &TaskRef{TaskStatus: TaskStatusRunning, ItemStatus: TaskItemPending}, DisplayPending},
		{"syncing wins over paused", ChannelStatusSyncing, &TaskRef{TaskStatus: TaskStatusPaused, ItemStatus: TaskItemPending}, DisplaySyncing},
		{"synced is terminal", ChannelStatusSynced, &TaskRef{TaskStatus: TaskStatusPaused, ItemStatus: TaskItemPending}, DisplaySynced},
		{"item already failed", ChannelStatusFailed, &TaskRef{TaskStatus: TaskStatusPaused, ItemStatus: TaskItemFailed}, DisplayFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ApparentStatus(tt.status, tt.owner); got != tt.want {
				t.Errorf("ApparentStatus() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDisplayStatusMarshalText(t *testing.T) {
	b, err := DisplayRetry.MarshalText()
	if err != nil || string(b) != "retry" {
		t.Errorf("MarshalText() = %q, %v", b, err)
	}
}
