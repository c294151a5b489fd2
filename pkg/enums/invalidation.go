package enums

import "fmt"

// QueueKind names the two invalidation queues.
type QueueKind string

const (
	QueueKindPrice        QueueKind = "price"
	QueueKindAvailability QueueKind = "availability"
)

// String implements fmt.Stringer.
func (q QueueKind) String() string {
	return string(q)
}

// IsValid reports whether the value is a known QueueKind.
func (q QueueKind) IsValid() bool {
	return q == QueueKindPrice || q == QueueKindAvailability
}

// ParseQueueKind converts raw input into a QueueKind.
func ParseQueueKind(value string) (QueueKind, error) {
	switch QueueKind(value) {
	case QueueKindPrice:
		return QueueKindPrice, nil
	case QueueKindAvailability:
		return QueueKindAvailability, nil
	default:
		return "", fmt.Errorf("invalid queue kind %q", value)
	}
}

// JobStatus tracks an invalidation job through its lifecycle. Completed jobs
// are deleted rather than kept, so there is no terminal success status.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusFailed     JobStatus = "failed"
)

// String implements fmt.Stringer.
func (s JobStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known JobStatus.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusFailed:
		return true
	default:
		return false
	}
}
