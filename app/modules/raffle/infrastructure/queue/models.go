package rafflequeue

const (
	// QueueRaffle carries keeper and fulfillment jobs.
	QueueRaffle = "raffle"

	KindUpkeep      = "raffle_upkeep"
	KindFulfillment = "vrf_fulfill"
)

// UpkeepJob asks the keeper to trigger the current round if it is eligible.
type UpkeepJob struct {
	RequestedBy string `json:"requested_by,omitempty"`
}

// Kind returns the job type identifier for River
func (UpkeepJob) Kind() string { return KindUpkeep }

// FulfillmentJob answers a pending randomness request on the local coordinator.
type FulfillmentJob struct {
	RequestID uint64 `json:"request_id"`
	Consumer  string `json:"consumer"`
}

// Kind returns the job type identifier for River
func (FulfillmentJob) Kind() string { return KindFulfillment }

// JobInfo represents information about a scheduled job (for debugging/monitoring)
type JobInfo struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	State       string `json:"state"`
	ScheduledAt string `json:"scheduled_at"`
	CreatedAt   string `json:"created_at"`
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
}
