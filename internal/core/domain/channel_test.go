package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from ChannelStatus
		to   ChannelStatus
		want bool
	}{
		{ChannelStatusPending, ChannelStatusSyncing, true},
		{ChannelStatusFailed, ChannelStatusSyncing, true},
		{ChannelStatusSyncing, ChannelStatusSynced, true},
		{ChannelStatusSyncing, ChannelStatusCompleted, true},
		{ChannelStatusSyncing, ChannelStatusFailed, true},
		{ChannelStatusSynced, ChannelStatusSyncing, false},
		{ChannelStatusCompleted, ChannelStatusSyncing, false},
		{ChannelStatusPending, ChannelStatusSynced, false},
		{ChannelStatusFailed, ChannelStatusPending, false},
		{ChannelStatusSyncing, ChannelStatusSyncing, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestChannelSuccessStatus(t *testing.T) {
	if ChannelOJ.SuccessStatus() != ChannelStatusCompleted {
		t.Error("oj should complete")
	}
	for _, ch := range []Channel{ChannelGitHub, ChannelAI, ChannelNotion} {
		if ch.SuccessStatus() != ChannelStatusSynced {
			t.Errorf("%s should sync", ch)
		}
		if !ch.IsDerived() {
			t.Errorf("%s should be derived", ch)
		}
	}
	if ChannelOJ.IsDerived() {
		t.Error("oj is not derived")
	}
}
