package domain

import "fmt"

// DisplayStatus is the apparent status of a record channel as shown to users.
// It adds the task-level paused and retry states to the canonical channel statuses.
type DisplayStatus int

const (
	DisplayPending DisplayStatus = iota
	DisplaySyncing
	DisplaySynced
	DisplayCompleted
	DisplayFailed
	DisplayPaused
	DisplayRetry

	displayStatusCount
)

// StatusTone is a presentation hint the UI maps to a color and icon
type StatusTone string

const (
	ToneDefault    StatusTone = "default"
	ToneProcessing StatusTone = "processing"
	ToneSuccess    StatusTone = "success"
	ToneError      StatusTone = "error"
	ToneWarning    StatusTone = "warning"
)

// StatusInfo describes how a display status is presented
type StatusInfo struct {
	Name     string     `json:"status"`
	Label    string     `json:"label"`
	Tone     StatusTone `json:"tone"`
	Terminal bool       `json:"terminal"`
}

// statusTable has one entry per DisplayStatus; TestStatusTableComplete
// fails when a status is added without an entry.
var statusTable = [displayStatusCount]StatusInfo{
	DisplayPending:   {Name: "pending", Label: "Pending", Tone: ToneDefault},
	DisplaySyncing:   {Name: "syncing", Label: "Syncing", Tone: ToneProcessing},
	DisplaySynced:    {Name: "synced", Label: "Synced", Tone: ToneSuccess, Terminal: true},
	DisplayCompleted: {Name: "completed", Label: "Completed", Tone: ToneSuccess, Terminal: true},
	DisplayFailed:    {Name: "failed", Label: "Failed", Tone: ToneError},
	DisplayPaused:    {Name: "paused", Label: "Paused", Tone: ToneWarning},
	DisplayRetry:     {Name: "retry", Label: "Retrying", Tone: ToneProcessing},
}

// Info returns the presentation entry for d
func (d DisplayStatus) Info() StatusInfo {
	if d < 0 || d >= displayStatusCount {
		panic(fmt.Sprintf("domain: display status %d out of range", int(d)))
	}
	return statusTable[d]
}

func (d DisplayStatus) String() string {
	return d.Info().Name
}

// MarshalText encodes the status by name
func (d DisplayStatus) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// displayOf maps a canonical channel status onto its display status
func displayOf(s ChannelStatus) DisplayStatus {
	switch s {
	case ChannelStatusSyncing:
		return DisplaySyncing
	case ChannelStatusSynced:
		return DisplaySynced
	case ChannelStatusCompleted:
		return DisplayCompleted
	case ChannelStatusFailed:
		return DisplayFailed
	default:
		return DisplayPending
	}
}

// TaskRef is the state of the active task that owns a record channel
type TaskRef struct {
	TaskID     int64          `json:"task_id"`
	TaskStatus TaskStatus     `json:"task_status"`
	ItemStatus TaskItemStatus `json:"item_status"`
}

// ApparentStatus derives the status shown for a channel by joining the
// canonical channel status with its owning task, if any. Paused and retry
// are never stored on the record.
func ApparentStatus(s ChannelStatus, owner *TaskRef) DisplayStatus {
	if s.IsSuccess() || s == ChannelStatusSyncing || owner == nil {
		return displayOf(s)
	}
	if owner.ItemStatus != TaskItemPending {
		return displayOf(s)
	}
	switch owner.TaskStatus {
	case TaskStatusPaused:
		return DisplayPaused
	case TaskStatusPending, TaskStatusRunning:
		if s == ChannelStatusFailed {
			return DisplayRetry
		}
	}
	return displayOf(s)
}

// ChannelView is the per-channel status block returned with a record
type ChannelView struct {
	Channel  Channel       `json:"channel"`
	Status   ChannelStatus `json:"status"`
	Apparent StatusInfo    `json:"apparent"`
	Task     *TaskRef      `json:"task,omitempty"`
}

// NewChannelView builds the view of one channel
func NewChannelView(ch Channel, s ChannelStatus, owner *TaskRef) ChannelView {
	return ChannelView{
		Channel:  ch,
		Status:   s,
		Apparent: ApparentStatus(s, owner).Info(),
		Task:     owner,
	}
}
