package db

type Transition struct {
	ID        int64
	CycleID   string
	FromState string
	ToState   string
	Kind      string
	Reason    string
	CreatedAt int64
}

type Evaluation struct {
	ID          int64
	CycleID     string
	Origin      string
	Destination string
	Price       int64
	Scheduled   string
	Category    string
	Confidence  string
	Accepted    bool
	Branch      string
	Reason      string
	CreatedAt   int64
}

type Acceptance struct {
	ID          int64
	CycleID     string
	Origin      string
	Destination string
	Price       int64
	Scheduled   string
	Category    string
	CreatedAt   int64
}

type Fault struct {
	ID        int64
	CycleID   string
	State     string
	Class     string
	Message   string
	CreatedAt int64
}

type Notification struct {
	ID        int64
	Level     string
	Severity  int64
	Source    string
	Message   string
	CreatedAt int64
}
