// Package sdnotify reports service state to systemd (Type=notify units).
//
// Every call is a no-op when the process was not started by systemd.
package sdnotify

import (
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "hwbot/pkg/logx"
)

// Notifier sends sd_notify messages. A nil *Notifier is valid and silent.
type Notifier struct {
	log  logx.Logger
	send func(state string) (bool, error)

	mu       sync.Mutex
	watchdog time.Duration
	warned   bool
}

func New(log logx.Logger) *Notifier {
	if log.IsZero() {
		log = logx.Nop()
	}
	n := &Notifier{log: log, send: func(state string) (bool, error) { return daemon.SdNotify(false, state) }}
	if d, err := daemon.SdWatchdogEnabled(false); err == nil && d > 0 {
		n.watchdog = d
		log.Info("systemd watchdog enabled", logx.Duration("interval", d))
	}
	return n
}

// Watchdog returns the WatchdogSec interval (0 when disabled).
func (n *Notifier) Watchdog() time.Duration {
	if n == nil {
		return 0
	}
	return n.watchdog
}

func (n *Notifier) Ready() { n.notify(daemon.SdNotifyReady) }

func (n *Notifier) Stopping() { n.notify(daemon.SdNotifyStopping) }

// Heartbeat pings the watchdog and updates the unit's status line.
func (n *Notifier) Heartbeat(status string) {
	if n == nil {
		return
	}
	state := "STATUS=" + status
	if n.watchdog > 0 {
		state = daemon.SdNotifyWatchdog + "\n" + state
	}
	n.notify(state)
}

func (n *Notifier) notify(state string) {
	if n == nil || n.send == nil {
		return
	}
	sent, err := n.send(state)
	if err != nil {
		n.mu.Lock()
		first := !n.warned
		n.warned = true
		n.mu.Unlock()
		if first {
			n.log.Warn("sd_notify failed", logx.Err(err))
		}
		return
	}
	if sent {
		n.log.Trace("sd_notify sent", logx.String("state", state))
	}
}
