package ui

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/byte3-it/iscp/transfer"
)

func TestBar(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		width    int
		want     string
	}{
		{name: "empty", fraction: 0, width: 5, want: "[>----]"},
		{name: "half", fraction: 0.5, width: 4, want: "[##>-]"},
		{name: "full", fraction: 1, width: 4, want: "[####]"},
		{name: "negative", fraction: -1, width: 3, want: "[>--]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bar(tt.fraction, tt.width); got != tt.want {
				t.Errorf("bar() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestProgressModel(t *testing.T) {
	var m progressModel
	m.label = "file.bin"

	m = m.observe(transfer.Sample{BytesSent: 1000, TotalBytes: 4000, Elapsed: time.Second})
	if m.rate != 1000 {
		t.Fatalf("rate = %v, want 1000", m.rate)
	}
	m = m.observe(transfer.Sample{BytesSent: 3000, TotalBytes: 4000, Elapsed: 2 * time.Second})
	want := rateSmoothing*2000 + (1-rateSmoothing)*1000
	if math.Abs(m.rate-want) > 1e-9 {
		t.Fatalf("rate = %v, want %v", m.rate, want)
	}

	// Out of order samples are dropped.
	m = m.observe(transfer.Sample{BytesSent: 10, TotalBytes: 4000, Elapsed: 3 * time.Second})
	if m.sample.BytesSent != 3000 {
		t.Fatalf("BytesSent = %d after stale sample", m.sample.BytesSent)
	}

	view := m.View()
	for _, s := range []string{"file.bin", "3.0 kB / 4.0 kB", "/s", "ETA"} {
		if !strings.Contains(view, s) {
			t.Errorf("View() = %q, missing %q", view, s)
		}
	}

	next, cmd := m.Update(doneMsg{err: errors.New("boom")})
	if cmd == nil {
		t.Error("doneMsg should quit")
	}
	if view := next.View(); !strings.Contains(view, "failed") {
		t.Errorf("View() after failure = %q", view)
	}
}

func TestProgressFinish(t *testing.T) {
	var out bytes.Buffer
	p := NewProgress("upload", &out)

	for i := uint64(1); i <= 100; i++ {
		p.Report(transfer.Sample{BytesSent: i * 10, TotalBytes: 1000, Elapsed: time.Duration(i) * time.Millisecond})
	}

	done := make(chan error, 1)
	go func() { done <- p.Finish(nil) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Finish() did not return")
	}

	// Reporting or finishing again must not panic or block.
	p.Report(transfer.Sample{BytesSent: 1, TotalBytes: 1})
	if err := p.Finish(nil); err != nil {
		t.Errorf("second Finish() error = %v", err)
	}
}

func TestProgressReportNeverBlocks(t *testing.T) {
	p := NewProgress("upload", &bytes.Buffer{})
	defer p.Finish(nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := uint64(0); i < 10_000; i++ {
			p.Report(transfer.Sample{BytesSent: i, TotalBytes: 10_000})
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Report blocked")
	}
}

func TestPrompterAsk(t *testing.T) {
	tests := []struct {
		name  string
		input string
		def   string
		want  string
	}{
		{name: "answer", input: "example.com\n", want: "example.com"},
		{name: "default", input: "\n", def: "/home/alice/a.txt", want: "/home/alice/a.txt"},
		{name: "trimmed", input: "  host  \n", want: "host"},
		{name: "no newline", input: "last", want: "last"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)
			got, err := p.Ask("Remote host", tt.def)
			if err != nil {
				t.Fatalf("Ask() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Ask() = %q, want %q", got, tt.want)
			}
			if !strings.HasPrefix(out.String(), "Remote host") {
				t.Errorf("prompt = %q", out.String())
			}
		})
	}
}

func TestPrompterAskRequired(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("\n\nalice\n"), &out)
	got, err := p.AskRequired("Username")
	if err != nil {
		t.Fatal(err)
	}
	if got != "alice" {
		t.Errorf("AskRequired() = %q", got)
	}
	if n := strings.Count(out.String(), "required"); n != 2 {
		t.Errorf("got %d warnings, want 2", n)
	}

	p = NewPrompter(strings.NewReader(""), &out)
	if _, err := p.AskRequired("Username"); !errors.Is(err, ErrNoInput) {
		t.Errorf("AskRequired() on EOF error = %v, want ErrNoInput", err)
	}
}

func TestPrompterAskPort(t *testing.T) {
	tests := []struct {
		input    string
		want     int
		wantWarn bool
	}{
		{input: "\n", want: 22},
		{input: "2222\n", want: 2222},
		{input: "abc\n", want: 22, wantWarn: true},
		{input: "70000\n", want: 22, wantWarn: true},
		{input: "0\n", want: 22, wantWarn: true},
	}
	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			got, err := NewPrompter(strings.NewReader(tt.input), &out).AskPort("Port")
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("AskPort() = %d, want %d", got, tt.want)
			}
			if warned := strings.Contains(out.String(), "invalid port"); warned != tt.wantWarn {
				t.Errorf("warning = %v, want %v", warned, tt.wantWarn)
			}
		})
	}
}

func TestPrompterSecrets(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("hunter2\ns3cret\n"), &out)

	pw, err := p.Password("alice")
	if err != nil || pw != "hunter2" {
		t.Fatalf("Password() = %q, %v", pw, err)
	}
	pp, err := p.Passphrase("/home/alice/.ssh/id_ed25519")
	if err != nil || pp != "s3cret" {
		t.Fatalf("Passphrase() = %q, %v", pp, err)
	}

	if strings.Contains(out.String(), "hunter2") || strings.Contains(out.String(), "s3cret") {
		t.Errorf("secret echoed in prompts: %q", out.String())
	}
	if !strings.Contains(out.String(), "id_ed25519") {
		t.Errorf("passphrase prompt does not name the key: %q", out.String())
	}
}

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)
	c.Banner("iscp")
	c.Info("Connecting to %s", "example.com:22")
	c.Warn("careful")
	c.Error("boom")
	c.Summary("/home/alice/a.txt", transfer.Sample{BytesSent: 2048, TotalBytes: 2048, Elapsed: 2 * time.Second})
	c.Summary("/home/alice/b.txt", transfer.Sample{})

	for _, s := range []string{"iscp", "Connecting to example.com:22", "careful", "boom", "2.0 kB", "/home/alice/a.txt", "1.0 kB/s", "n/a average"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("output missing %q:\n%s", s, out.String())
		}
	}
}
