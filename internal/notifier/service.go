package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

var ErrNoTarget = errors.New("notifier: chat target is not set")

// Service sends messages to one fixed chat. It is safe for concurrent use.
type Service struct {
	log    logx.Logger
	sender kit.Sender

	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender kit.Sender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log}
	s.Apply(cfg)
	return s
}

// Apply updates the rate limit and history size. The target is kept when
// cfg.Target is zero.
func (s *Service) Apply(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 20
	}
	s.mu.Lock()
	if cfg.Target.ChatID == 0 {
		cfg.Target = s.cfg.Target
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	s.mu.Unlock()
}

// Send delivers text to the configured chat. Transport errors are returned
// unchanged; nothing is retried here.
func (s *Service) Send(ctx context.Context, text string) error {
	s.mu.Lock()
	target := s.cfg.Target
	lim := s.limiter
	historySize := s.cfg.HistorySize
	s.mu.Unlock()

	if target.ChatID == 0 {
		s.record(historySize, text, ErrNoTarget)
		return ErrNoTarget
	}
	if err := lim.Wait(ctx); err != nil {
		s.record(historySize, text, err)
		return err
	}

	_, err := s.sender.SendText(ctx, target, text, &kit.SendOptions{DisablePreview: true})
	s.record(historySize, text, err)
	if err != nil {
		return err
	}
	s.log.Debug("Сообщение отправлено", logx.Int64("chat_id", target.ChatID))
	return nil
}

func (s *Service) record(limit int, text string, err error) {
	it := HistoryItem{At: time.Now(), Text: text}
	if err != nil {
		it.Error = err.Error()
	}
	s.hmu.Lock()
	s.history = append(s.history, it)
	if over := len(s.history) - limit; over > 0 {
		s.history = append([]HistoryItem(nil), s.history[over:]...)
	}
	s.hmu.Unlock()
}

// History returns the most recent sends, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}
