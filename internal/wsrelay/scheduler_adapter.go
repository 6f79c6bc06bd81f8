package wsrelay

import "github.com/jwvaartjes/dental-relay/internal/scheduler"

// SchedulerAdapter satisfies ChunkSubmitter over a concrete
// *scheduler.Scheduler, translating the hub's transport-local chunk shape
// into the scheduler's own AudioChunk.
type SchedulerAdapter struct {
	Scheduler *scheduler.Scheduler
}

func (a SchedulerAdapter) Submit(chunk SchedulerChunk) bool {
	return a.Scheduler.Submit(scheduler.AudioChunk{
		ClientID:   chunk.ClientID,
		Payload:    chunk.Payload,
		ChunkID:    chunk.ChunkID,
		Timestamp:  chunk.Timestamp,
		Priority:   scheduler.Priority(chunk.Priority),
		SessionRef: chunk.SessionRef,
	})
}
