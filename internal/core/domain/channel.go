package domain

// Channel identifies one of the independent sync lanes of a record
type Channel string

const (
	// ChannelOJ syncs canonical submission detail from the online judge
	ChannelOJ Channel = "oj"
	// ChannelGitHub pushes the solution to a GitHub repository
	ChannelGitHub Channel = "github"
	// ChannelAI attaches an AI analysis to the record
	ChannelAI Channel = "ai"
	// ChannelNotion mirrors the record into a Notion database
	ChannelNotion Channel = "notion"
)

// AllChannels returns every channel in display order
func AllChannels() []Channel {
	return []Channel{ChannelOJ, ChannelGitHub, ChannelAI, ChannelNotion}
}

// IsValid reports whether c is a known channel
func (c Channel) IsValid() bool {
	switch c {
	case ChannelOJ, ChannelGitHub, ChannelAI, ChannelNotion:
		return true
	}
	return false
}

// IsDerived reports whether the channel depends on completed OJ detail
func (c Channel) IsDerived() bool {
	return c == ChannelGitHub || c == ChannelAI || c == ChannelNotion
}

// SuccessStatus is the terminal status a channel reaches on success.
// The OJ channel reports completed, every other channel synced.
func (c Channel) SuccessStatus() ChannelStatus {
	if c == ChannelOJ {
		return ChannelStatusCompleted
	}
	return ChannelStatusSynced
}

// ChannelStatus is the canonical per-record status of a channel
type ChannelStatus string

const (
	ChannelStatusPending   ChannelStatus = "pending"
	ChannelStatusSyncing   ChannelStatus = "syncing"
	ChannelStatusSynced    ChannelStatus = "synced"
	ChannelStatusFailed    ChannelStatus = "failed"
	ChannelStatusCompleted ChannelStatus = "completed"
)

// AllChannelStatuses returns the closed set of channel statuses
func AllChannelStatuses() []ChannelStatus {
	return []ChannelStatus{
		ChannelStatusPending,
		ChannelStatusSyncing,
		ChannelStatusSynced,
		ChannelStatusFailed,
		ChannelStatusCompleted,
	}
}

// IsValid reports whether s is a known channel status
func (s ChannelStatus) IsValid() bool {
	switch s {
	case ChannelStatusPending, ChannelStatusSyncing, ChannelStatusSynced,
		ChannelStatusFailed, ChannelStatusCompleted:
		return true
	}
	return false
}

// IsSuccess reports whether the channel holds a synced result
func (s ChannelStatus) IsSuccess() bool {
	return s == ChannelStatusSynced || s == ChannelStatusCompleted
}

// CanStart reports whether a sync may begin from this status.
// Only pending and failed may move to syncing; success states are terminal.
func (s ChannelStatus) CanStart() bool {
	return s == ChannelStatusPending || s == ChannelStatusFailed
}

// CanTransition reports whether from -> to is an edge of the channel state machine
func CanTransition(from, to ChannelStatus) bool {
	switch to {
	case ChannelStatusSyncing:
		return from.CanStart()
	case ChannelStatusSynced, ChannelStatusCompleted, ChannelStatusFailed:
		return from == ChannelStatusSyncing
	}
	return false
}
