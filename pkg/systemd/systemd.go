// Package systemd reports loop progress to the service manager over sd_notify.
// Every call is a no-op when NOTIFY_SOCKET is not set.
package systemd

import (
	"fmt"
	"strings"

	"github.com/coreos/go-systemd/v22/daemon"
)

type notifyFunc func(unsetEnvironment bool, state string) (bool, error)

// Notifier sends readiness and status updates.
type Notifier struct {
	notify notifyFunc
}

func NewNotifier() *Notifier {
	return &Notifier{notify: daemon.SdNotify}
}

// Ready announces that startup (config, resolution) finished.
func (n *Notifier) Ready() error { return n.send(daemon.SdNotifyReady) }

// Stopping announces that the loop has ended on its own.
func (n *Notifier) Stopping() error { return n.send(daemon.SdNotifyStopping) }

// Status publishes a one-line free-form status.
func (n *Notifier) Status(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	// sd_notify assignments are newline separated.
	msg = strings.ReplaceAll(msg, "\n", " ")
	return n.send("STATUS=" + msg)
}

func (n *Notifier) send(state string) error {
	if n == nil || n.notify == nil {
		return nil
	}
	_, err := n.notify(false, state)
	return err
}
