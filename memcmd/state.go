package memcmd

//go:generate go tool stringer -type=State

// State is the progress of an add-block operation.
type State int

const (
	Validating State = iota
	Building
	Inserting
	FragmentTracking
	Committed
	Failed
)
