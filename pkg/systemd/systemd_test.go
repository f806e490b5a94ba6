package systemd

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNotifierSendsStates(t *testing.T) {
	t.Parallel()
	var got []string
	n := &Notifier{notify: func(unset bool, state string) (bool, error) {
		got = append(got, state)
		return true, nil
	}}

	if err := n.Ready(); err != nil {
		t.Fatal(err)
	}
	if err := n.Status("fired %d\ntimes", 3); err != nil {
		t.Fatal(err)
	}
	if err := n.Stopping(); err != nil {
		t.Fatal(err)
	}

	want := []string{"READY=1", "STATUS=fired 3 times", "STOPPING=1"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("states = %q, want %q", got, want)
	}
}

func TestNilNotifierIsNoop(t *testing.T) {
	t.Parallel()
	var n *Notifier
	if err := n.Ready(); err != nil {
		t.Fatalf("nil notifier Ready: %v", err)
	}
}

func TestNotifierWritesToSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "notify.sock")
	conn, err := net.ListenUnixgram("unixgram", &net.UnixAddr{Name: sock, Net: "unixgram"})
	if err != nil {
		t.Skipf("unixgram not available: %v", err)
	}
	defer conn.Close()
	t.Setenv("NOTIFY_SOCKET", sock)

	if err := NewNotifier().Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "READY=1" {
		t.Fatalf("datagram = %q", string(buf[:n]))
	}
	_ = os.Remove(sock)
}
