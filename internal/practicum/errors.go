package practicum

import "fmt"

// Kind classifies API client failures.
type Kind int

const (
	// KindConnection is a transport failure: DNS, TCP, TLS, timeout.
	KindConnection Kind = iota + 1
	// KindStatus is any HTTP status other than 200.
	KindStatus
	// KindDecode is a 200 response whose body is not valid JSON.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

const (
	msgConnection = "Ошибка запроса/соединения"
	msgStatus     = "Некорректный ответ от API!"
	msgDecode     = "Ответ API не является JSON"
)

// Error is returned by Client for every failed request.
//
// For KindStatus the message is fixed and does not carry the HTTP code; the
// code is available in Code for logging.
type Error struct {
	Kind Kind
	Code int
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind != KindStatus {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }
