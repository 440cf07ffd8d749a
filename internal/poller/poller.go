package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"hwbot/internal/homework"
	"hwbot/internal/practicum"
	"hwbot/internal/storage"
	logx "hwbot/pkg/logx"
)

// DefaultRetryPeriod is the pause between two cycles.
const DefaultRetryPeriod = 600 * time.Second

// failurePrefix starts every failure message sent to the chat.
const failurePrefix = "Сбой в работе программы: "

// APIClient fetches the raw status response for a cursor.
type APIClient interface {
	GetAPIAnswer(ctx context.Context, cursor int64) (any, error)
}

// Notifier delivers a message to the chat.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Heartbeat is told about every finished iteration (systemd watchdog).
type Heartbeat interface {
	Heartbeat(status string)
}

type Config struct {
	// Schedule decides how long to sleep after each cycle.
	// Nil means a fixed DefaultRetryPeriod.
	Schedule Schedule
	// NotifyOnFailure sends a failure message to the chat for failed cycles.
	NotifyOnFailure bool
	// Cursor is the initial from_date. Zero means Now().Unix().
	Cursor int64

	// Now and Sleep are overridable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Poller runs the fetch -> validate -> format -> notify loop.
//
// The loop is strictly sequential. Only Snapshot and Apply may be called from
// other goroutines.
type Poller struct {
	api      APIClient
	parser   *homework.Parser
	notifier Notifier
	journal  storage.Journal
	beat     Heartbeat
	log      logx.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	sched  Schedule
	notify bool
	snap   Snapshot
}

// Snapshot is a read-only view of the loop state.
type Snapshot struct {
	Cursor      int64     `json:"cursor"`
	StartedAt   time.Time `json:"started_at"`
	Cycles      uint64    `json:"cycles"`
	Failures    uint64    `json:"failures"`
	LastCycleAt time.Time `json:"last_cycle_at,omitempty"`
	LastOK      bool      `json:"last_ok"`
	LastMessage string    `json:"last_message,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

type Option func(*Poller)

// WithJournal records every cycle outcome (best effort).
func WithJournal(j storage.Journal) Option { return func(p *Poller) { p.journal = j } }

// WithHeartbeat reports every finished iteration.
func WithHeartbeat(h Heartbeat) Option { return func(p *Poller) { p.beat = h } }

func New(cfg Config, api APIClient, parser *homework.Parser, notifier Notifier, log logx.Logger, opts ...Option) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	if parser == nil {
		parser = homework.NewParser(log)
	}
	p := &Poller{
		api:      api,
		parser:   parser,
		notifier: notifier,
		log:      log,
		now:      cfg.Now,
		sleep:    cfg.Sleep,
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.sleep == nil {
		p.sleep = sleepCtx
	}
	p.Apply(cfg.Schedule, cfg.NotifyOnFailure)

	cursor := cfg.Cursor
	if cursor == 0 {
		cursor = p.now().Unix()
	}
	p.snap = Snapshot{Cursor: cursor, StartedAt: p.now()}

	for _, o := range opts {
		o(p)
	}
	return p
}

// Apply swaps the schedule and failure policy; it takes effect from the next sleep.
func (p *Poller) Apply(sch Schedule, notifyOnFailure bool) {
	if sch == nil {
		sch = constantDelay(DefaultRetryPeriod)
	}
	p.mu.Lock()
	p.sched = sch
	p.notify = notifyOnFailure
	p.mu.Unlock()
}

func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

// Cursor returns the current from_date.
func (p *Poller) Cursor() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap.Cursor
}

// Run loops until ctx is done. Every iteration ends with a sleep, whatever
// happened in the cycle or while reporting its failure.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("polling started", logx.Int64("cursor", p.Cursor()))
	for {
		if err := ctx.Err(); err != nil {
			p.log.Info("polling stopped", logx.Int64("cursor", p.Cursor()))
			return err
		}
		p.iterate(ctx)
	}
}

// RunOnce runs one cycle with the usual failure reporting but without the
// trailing sleep. It returns the cycle error.
func (p *Poller) RunOnce(ctx context.Context) error {
	err := p.Cycle(ctx)
	if err != nil {
		p.reportFailure(ctx, err)
	}
	return err
}

func (p *Poller) iterate(ctx context.Context) {
	defer p.pause(ctx)
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("cycle panic", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
			p.reportFailure(ctx, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := p.Cycle(ctx); err != nil {
		p.reportFailure(ctx, err)
	}
}

func (p *Poller) pause(ctx context.Context) {
	p.mu.Lock()
	sch := p.sched
	p.mu.Unlock()

	d := delayUntilNext(sch, p.now())
	if p.beat != nil {
		p.beat.Heartbeat(fmt.Sprintf("cursor=%d next in %s", p.Cursor(), d.Round(time.Second)))
	}
	p.log.Trace("sleeping", logx.Duration("for", d))
	_ = p.sleep(ctx, d)
}

// Cycle runs a single fetch -> validate -> format -> notify pass and advances
// the cursor on success. On error the cursor is unchanged.
func (p *Poller) Cycle(ctx context.Context) error {
	start := p.now()
	before := p.Cursor()

	rec, msg, after, err := p.cycle(ctx, before)

	entry := storage.Cycle{
		At:           start,
		CursorBefore: before,
		CursorAfter:  before,
		OK:           err == nil,
		Homework:     rec.Name(),
		Status:       rec.Status(),
		Message:      msg,
		TookMS:       p.now().Sub(start).Milliseconds(),
	}

	p.mu.Lock()
	p.snap.Cycles++
	p.snap.LastCycleAt = start
	p.snap.LastOK = err == nil
	if err == nil {
		p.snap.Cursor = after
		p.snap.LastMessage = msg
		p.snap.LastError = ""
		entry.CursorAfter = after
	} else {
		p.snap.Failures++
		p.snap.LastError = err.Error()
		entry.ErrorKind = ErrorKind(err)
		entry.Error = err.Error()
	}
	p.mu.Unlock()

	p.appendJournal(ctx, entry)
	return err
}

func (p *Poller) cycle(ctx context.Context, cursor int64) (homework.Record, string, int64, error) {
	body, err := p.api.GetAPIAnswer(ctx, cursor)
	if err != nil {
		return nil, "", cursor, err
	}
	rec, err := p.parser.CheckResponse(body)
	if err != nil {
		return nil, "", cursor, err
	}
	msg, err := p.parser.ParseStatus(rec)
	if err != nil {
		return rec, "", cursor, err
	}
	if err := p.notifier.Send(ctx, msg); err != nil {
		return rec, msg, cursor, &SendError{Err: err}
	}

	next, ok := currentDate(body)
	if !ok {
		p.log.Warn("current_date missing or not an integer; cursor kept", logx.Int64("cursor", cursor))
		next = cursor
	}
	p.log.Info("status change delivered",
		logx.String("homework", rec.Name()),
		logx.String("status", rec.Status()),
		logx.Int64("cursor", next),
	)
	return rec, msg, next, nil
}

// reportFailure is the single recovery action for every in-cycle error: log
// it and, when enabled, tell the chat. A failed failure-notification is only
// logged.
func (p *Poller) reportFailure(ctx context.Context, err error) {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		p.log.Info("cycle interrupted by shutdown", logx.Err(err))
		return
	}

	message := failurePrefix + err.Error()
	p.log.Error(message, logx.String("kind", ErrorKind(err)))

	p.mu.Lock()
	notify := p.notify
	p.mu.Unlock()
	if !notify {
		return
	}
	if serr := p.notifier.Send(ctx, message); serr != nil {
		p.log.Error("failure notification not delivered", logx.Err(serr), logx.String("kind", ErrorKind(err)))
	}
}

func (p *Poller) appendJournal(ctx context.Context, c storage.Cycle) {
	if p.journal == nil {
		return
	}
	// Don't let a slow disk hold the loop; a shutdown still gets its record.
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.journal.AppendCycle(jctx, c); err != nil {
		p.log.Warn("journal append failed", logx.Err(err))
	}
}

// SendError wraps a delivery failure of a status message.
type SendError struct{ Err error }

func (e *SendError) Error() string { return "отправка сообщения: " + e.Err.Error() }
func (e *SendError) Unwrap() error { return e.Err }

// ErrorKind names the class of a cycle error for logs and the journal.
func ErrorKind(err error) string {
	var (
		apiErr  *practicum.Error
		hwErr   *homework.Error
		sendErr *SendError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return "api." + apiErr.Kind.String()
	case errors.As(err, &hwErr):
		return "response." + hwErr.Kind.String()
	case errors.As(err, &sendErr):
		return "send"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	default:
		return "internal"
	}
}

// currentDate extracts an integral current_date from a decoded body.
func currentDate(body any) (int64, bool) {
	m, ok := body.(map[string]any)
	if !ok {
		return 0, false
	}
	switch v := m["current_date"].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

type constantDelay time.Duration

func (d constantDelay) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
