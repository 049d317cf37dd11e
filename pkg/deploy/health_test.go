package deploy

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// syncBuffer guards concurrent reads from the test against the monitor's
// writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestHealthMonitorResponsive(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	port := listener.Addr().(*net.TCPAddr).Port

	var buf syncBuffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)

	monitor := NewHealthMonitor("127.0.0.1", port, 20*time.Millisecond, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for !strings.Contains(buf.String(), "system responsive") {
		select {
		case <-deadline:
			t.Fatalf("no responsive probe logged: %s", buf.String())
		case <-time.After(20 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Error("monitor did not stop after cancellation")
	}
}

func TestHealthMonitorUnresponsive(t *testing.T) {
	// Grab a free port and close it so nothing is listening there.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	var buf bytes.Buffer
	monitor := NewHealthMonitor("127.0.0.1", port, 20*time.Millisecond, log.New(&buf))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	monitor.Run(ctx)

	if !strings.Contains(buf.String(), "not responding") {
		t.Errorf("expected an unresponsive warning, got: %s", buf.String())
	}
}
