package orders

type Status string

const (
	StatusNew        Status = "new"
	StatusAccepted   Status = "accepted"
	StatusProcessing Status = "processing"
	StatusDeliver    Status = "deliver"
	StatusCompleted  Status = "completed"
	StatusCancel     Status = "cancel"
	StatusRejected   Status = "rejected"
)

var validNext = map[Status]map[Status]bool{
	StatusNew:        {StatusAccepted: true, StatusCancel: true, StatusRejected: true},
	StatusAccepted:   {StatusProcessing: true, StatusCancel: true, StatusRejected: true},
	StatusProcessing: {StatusDeliver: true},
	StatusDeliver:    {StatusCompleted: true},
	StatusCompleted:  {},
	StatusCancel:     {},
	StatusRejected:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Known() bool {
	_, ok := validNext[s]
	return ok
}
