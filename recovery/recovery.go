package recovery

// Strategy decides how a parser reacts to malformed input.
type Strategy interface {
	OnError(err error, location Location) Action
}

type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionFail:
		return "fail"
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	case ActionWarn:
		return "warn"
	default:
		return "unknown"
	}
}
