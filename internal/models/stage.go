package models

// Stage is the pipeline position reached by a run
type Stage int

const (
	NotStarted Stage = iota
	MergeChecked
	BuildChecked
	Done
)

func (s Stage) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case MergeChecked:
		return "merge checked"
	case BuildChecked:
		return "build checked"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}
