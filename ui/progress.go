package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/byte3-it/iscp/transfer"
)

const (
	barWidth = 30

	// rateSmoothing weights the newest instantaneous rate.
	rateSmoothing = 0.3
)

type sampleMsg transfer.Sample

type doneMsg struct{ err error }

// progressModel renders one upload.
type progressModel struct {
	label  string
	sample transfer.Sample
	rate   float64
	seen   bool
	done   bool
	err    error
}

func (m progressModel) Init() tea.Cmd {
	return nil
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sampleMsg:
		m = m.observe(transfer.Sample(msg))
	case doneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

// observe folds a sample into the smoothed rate. Samples that go backwards
// are ignored.
func (m progressModel) observe(s transfer.Sample) progressModel {
	if m.seen && s.BytesSent < m.sample.BytesSent {
		return m
	}
	if dt := s.Elapsed - m.sample.Elapsed; dt > 0 {
		inst := float64(s.BytesSent-m.sample.BytesSent) / dt.Seconds()
		if m.rate == 0 {
			m.rate = inst
		} else {
			m.rate = rateSmoothing*inst + (1-rateSmoothing)*m.rate
		}
	}
	m.sample = s
	m.seen = true
	return m
}

func (m progressModel) View() string {
	s := m.sample
	line := fmt.Sprintf("%s %s %s / %s",
		m.label,
		barStyle.Render(bar(s.Fraction(), barWidth)),
		humanize.Bytes(s.BytesSent),
		humanize.Bytes(s.TotalBytes),
	)

	switch {
	case m.done && m.err != nil:
		return line + "  " + errorStyle.Render("failed") + "\n"
	case m.done || (s.Done() && m.seen):
		return line + "  " + dimStyle.Render(s.Elapsed.Round(time.Millisecond).String()) + "\n"
	}

	line += fmt.Sprintf("  %s/s", humanize.Bytes(uint64(m.rate)))
	if eta := s.ETA(m.rate); eta >= 0 {
		line += "  ETA " + eta.Round(time.Second).String()
	}
	return line + "\n"
}

// bar draws [####>-----] for fraction in [0, 1].
func bar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	filled := int(fraction * float64(width))
	if filled >= width {
		return "[" + strings.Repeat("#", width) + "]"
	}
	return "[" + strings.Repeat("#", filled) + ">" + strings.Repeat("-", width-filled-1) + "]"
}

// Progress is a transfer.Observer that renders samples with a bubbletea
// program. Report never blocks: a slow terminal only ever sees the newest
// sample.
type Progress struct {
	program *tea.Program

	mu      sync.Mutex
	closed  bool
	samples chan transfer.Sample

	forwarded chan struct{}
	finished  chan struct{}
	runErr    error
}

var _ transfer.Observer = (*Progress)(nil)

// NewProgress starts rendering to out. When out is not a terminal nothing is
// drawn.
func NewProgress(label string, out io.Writer) *Progress {
	if out == nil {
		out = os.Stderr
	}
	opts := []tea.ProgramOption{tea.WithOutput(out), tea.WithInput(nil), tea.WithoutSignalHandler()}
	if f, ok := out.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		opts = append(opts, tea.WithoutRenderer())
	}

	p := &Progress{
		program:   tea.NewProgram(progressModel{label: label}, opts...),
		samples:   make(chan transfer.Sample, 1),
		forwarded: make(chan struct{}),
		finished:  make(chan struct{}),
	}

	go func() {
		defer close(p.finished)
		_, p.runErr = p.program.Run()
	}()
	go func() {
		defer close(p.forwarded)
		for s := range p.samples {
			p.program.Send(sampleMsg(s))
		}
	}()
	return p
}

// Report implements transfer.Observer.
func (p *Progress) Report(s transfer.Sample) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	select {
	case p.samples <- s:
		return
	default:
	}
	// Drop the pending sample in favour of the newer one.
	select {
	case <-p.samples:
	default:
	}
	select {
	case p.samples <- s:
	default:
	}
}

// Finish renders the final state and waits for the program to exit.
func (p *Progress) Finish(err error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.finished
		return p.runErr
	}
	p.closed = true
	close(p.samples)
	p.mu.Unlock()

	<-p.forwarded
	p.program.Send(doneMsg{err: err})
	<-p.finished
	return p.runErr
}
