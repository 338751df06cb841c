package statsd

import (
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"
)

func TestMetricName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix, name, want string
	}{
		{"", " job/transition ", "job_transition"},
		{"agent", "job..duration", "agent.job.duration"},
		{"agent", "", ""},
		{"", "a:b|c", "a_b_c"},
	}
	for _, tt := range tests {
		if got := metricName(tt.prefix, tt.name); got != tt.want {
			t.Fatalf("metricName(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}

func TestFormatTags(t *testing.T) {
	t.Parallel()

	global := map[string]string{"env": "prod", " service ": " agent-api "}
	local := map[string]string{"result": " success ", "": "ignored", "env": "stage"}

	got := formatTags(global, local)
	want := "|#env:stage,result:success,service:agent-api"
	if got != want {
		t.Fatalf("formatTags mismatch\n got: %q\nwant: %q", got, want)
	}
	if got := formatTags(nil, nil); got != "" {
		t.Fatalf("formatTags(nil, nil) = %q, want empty string", got)
	}
}

func TestClientLine(t *testing.T) {
	t.Parallel()

	c := &Client{prefix: "agent", globalTags: map[string]string{"env": "test"}}
	got := c.line("job.duration", "1.5", "ms", map[string]string{"transition": "completed"})
	want := "agent.job.duration:1.5|ms|#env:test,transition:completed"
	if got != want {
		t.Fatalf("line = %q, want %q", got, want)
	}
}

func TestClientWritesOverConnection(t *testing.T) {
	t.Parallel()

	clientConn, peerConn := net.Pipe()
	defer peerConn.Close()

	c := &Client{prefix: "agent", conn: clientConn, logger: slog.Default()}

	done := make(chan string, 1)
	go func() {
		buf := make([]byte, 256)
		n, _ := peerConn.Read(buf)
		done <- string(buf[:n])
	}()

	c.Count("job.transition", 1, map[string]string{"result": "success"})

	select {
	case line := <-done:
		if line != "agent.job.transition:1|c|#result:success" {
			t.Fatalf("unexpected line %q", line)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for metric")
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if c.Enabled() {
		t.Fatal("expected client to be disabled after Close")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close (second call) error: %v", err)
	}
}

func TestNilAndDisabledClient(t *testing.T) {
	t.Parallel()

	var nilClient *Client
	nilClient.Count("x", 1, nil)
	nilClient.Timing("x", time.Second, nil)
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil client Close error: %v", err)
	}

	client, err := NewClient(Config{Enabled: true, Address: "   "})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client to stay disabled when address is empty")
	}
	client.Count("x", 1, nil)
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil {
		t.Fatal("expected NewClient to error for invalid address")
	}
	if !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder
	r.Count("job.transition", 1, map[string]string{"result": "success"})
	r.Timing("job.duration", 1500*time.Millisecond, nil)

	if got := len(r.Metrics()); got != 2 {
		t.Fatalf("Metrics() len = %d, want 2", got)
	}
	timings := r.Named("job.duration")
	if len(timings) != 1 || timings[0].Value != 1500 {
		t.Fatalf("unexpected timings %+v", timings)
	}
}
