package homework

import (
	"fmt"

	logx "hwbot/pkg/logx"
)

const (
	keyHomeworks = "homeworks"
	keyName      = "homework_name"
	keyStatus    = "status"
)

// Record is one element of the "homeworks" list.
type Record map[string]any

// Name returns homework_name when it is a string.
func (r Record) Name() string {
	s, _ := r[keyName].(string)
	return s
}

// Status returns status when it is a string.
func (r Record) Status() string {
	s, _ := r[keyStatus].(string)
	return s
}

// Parser validates API bodies and formats status messages.
// The zero value is usable and does not log.
type Parser struct {
	log logx.Logger
}

func NewParser(log logx.Logger) *Parser {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Parser{log: log}
}

// CheckResponse checks the body shape and returns the first homework.
func (p *Parser) CheckResponse(body any) (Record, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return nil, &Error{Kind: KindType, Msg: "Ожидался словарь"}
	}

	raw, ok := m[keyHomeworks]
	if !ok || raw == nil {
		p.log.Error("Ключ не найден", logx.String("key", keyHomeworks))
		return nil, &Error{Kind: KindLookup, Msg: "Ключ не найден"}
	}

	list, ok := raw.([]any)
	if !ok {
		p.log.Error("Неверный тип данных", logx.String("key", keyHomeworks), logx.String("type", fmt.Sprintf("%T", raw)))
		return nil, &Error{Kind: KindType, Msg: "Неизвестный тип в значении ключа homeworks"}
	}

	if len(list) == 0 {
		return nil, &Error{Kind: KindIndex, Msg: "Список homeworks пуст"}
	}

	rec, ok := list[0].(map[string]any)
	if !ok {
		return nil, &Error{Kind: KindType, Msg: "Ожидался словарь в homeworks[0]"}
	}
	return Record(rec), nil
}

// ParseStatus formats the message for a homework record.
//
// An empty record is logged as "unchanged" but still goes through the key
// checks below, so it fails with a lookup error.
func (p *Parser) ParseStatus(rec Record) (string, error) {
	if len(rec) == 0 {
		p.log.Debug("Статус прежний")
	}

	name, ok := rec[keyName]
	if !ok || name == nil {
		return "", &Error{Kind: KindLookup, Msg: "Ключ не найден"}
	}

	status, _ := rec[keyStatus].(string)
	verdict, ok := verdicts[status]
	if !ok {
		return "", &Error{Kind: KindUnknownStatus, Msg: "Неизвестный статус работы"}
	}

	return fmt.Sprintf(`Изменился статус проверки работы "%v". %s`, name, verdict), nil
}
