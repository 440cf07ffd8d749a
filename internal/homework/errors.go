package homework

// Kind classifies response and record problems.
type Kind int

const (
	// KindType: a value has the wrong JSON type.
	KindType Kind = iota + 1
	// KindLookup: a required key is missing.
	KindLookup
	// KindIndex: "homeworks" is an empty list.
	KindIndex
	// KindUnknownStatus: "status" is missing or not in the verdict table.
	KindUnknownStatus
)

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindLookup:
		return "lookup"
	case KindIndex:
		return "index"
	case KindUnknownStatus:
		return "unknown_status"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Is matches another *Error by Kind, so errors.Is(err, ErrLookup) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is; their messages are not used.
var (
	ErrType          = &Error{Kind: KindType}
	ErrLookup        = &Error{Kind: KindLookup}
	ErrIndex         = &Error{Kind: KindIndex}
	ErrUnknownStatus = &Error{Kind: KindUnknownStatus}
)
