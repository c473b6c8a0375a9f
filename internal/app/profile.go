package app

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type section int

const (
	sectionAdvance section = iota
	sectionRender
	sectionPresent
	numSections
)

// profiler appends one CSV row of section timings per frame. A nil profiler
// is valid and records nothing.
type profiler struct {
	file  *os.File
	w     *bufio.Writer
	start time.Time
	last  time.Time
	spent [numSections]time.Duration
	rows  int
}

func newProfiler(path string, log logrus.FieldLogger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("profiler disabled")
		return nil
	}
	p := &profiler{file: f, w: bufio.NewWriter(f)}
	fmt.Fprintln(p.w, "timestamp,advance_ms,render_ms,present_ms,frame_ms,bands,curve_points,dropped")
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	now := time.Now()
	p.start = now
	p.last = now
	p.spent = [numSections]time.Duration{}
}

func (p *profiler) mark(s section) {
	if p == nil {
		return
	}
	now := time.Now()
	p.spent[s] += now.Sub(p.last)
	p.last = now
}

func (p *profiler) endFrame(bands, points int, dropped uint64) {
	if p == nil {
		return
	}
	fmt.Fprintf(p.w, "%s,%.3f,%.3f,%.3f,%.3f,%d,%d,%d\n",
		p.start.Format(time.RFC3339Nano),
		ms(p.spent[sectionAdvance]),
		ms(p.spent[sectionRender]),
		ms(p.spent[sectionPresent]),
		ms(time.Since(p.start)),
		bands, points, dropped)
	p.rows++
	// flush about once a second at typical frame rates
	if p.rows%64 == 0 {
		_ = p.w.Flush()
	}
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	if err := p.w.Flush(); err != nil {
		_ = p.file.Close()
		return fmt.Errorf("flush profile: %w", err)
	}
	return p.file.Close()
}

func ms(d time.Duration) float64 {
	return d.Seconds() * 1000
}
