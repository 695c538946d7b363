package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// TaskCallSweep finalizes call logs stuck in pending past the configured
// window. Periodic, no payload.
const TaskCallSweep = "calls.sweep.stuck"

// TaskCampaignDialTick advances every running campaign by one call.
// Periodic, no payload.
const TaskCampaignDialTick = "campaigns.dial.tick"

// TaskArchiveRecording copies a provider-hosted recording into object
// storage.
const TaskArchiveRecording = "calls.recording.archive"

type ArchiveRecordingPayload struct {
	CallLogID    string `json:"callLogId"`
	RecordingURL string `json:"recordingUrl"`
}

func NewCallSweepTask() *asynq.Task {
	return asynq.NewTask(TaskCallSweep, nil)
}

func NewCampaignDialTickTask() *asynq.Task {
	return asynq.NewTask(TaskCampaignDialTick, nil)
}

func NewArchiveRecordingTask(payload ArchiveRecordingPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskArchiveRecording, data), nil
}

func ParseArchiveRecordingPayload(task *asynq.Task) (ArchiveRecordingPayload, error) {
	var payload ArchiveRecordingPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ArchiveRecordingPayload{}, err
	}
	return payload, nil
}
