package app

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// frameSections are the columns of the profile, in loop order.
var frameSections = []string{"input", "analyze", "draw", "flush"}

// profiler writes one CSV row per frame with the time spent in each loop
// section, and logs the per-section averages when closed. A nil profiler
// records nothing.
type profiler struct {
	out   io.WriteCloser
	log   logrus.FieldLogger
	start time.Time
	mark  time.Time
	row   []time.Duration
	sums  []time.Duration
	total time.Duration
	count int
}

func newProfiler(path string, log logrus.FieldLogger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.WithError(err).Warn("profiler disabled")
		return nil
	}
	if fi, err := f.Stat(); err == nil && fi.Size() == 0 {
		fmt.Fprintf(f, "timestamp,%s_ms,total_ms\n", strings.Join(frameSections, "_ms,"))
	}
	return &profiler{
		out:  f,
		log:  log.WithField("component", "profiler"),
		row:  make([]time.Duration, len(frameSections)),
		sums: make([]time.Duration, len(frameSections)),
	}
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	p.start = time.Now()
	p.mark = p.start
	clear(p.row)
}

// markSection charges the time since the previous mark to section.
func (p *profiler) markSection(section string) {
	if p == nil {
		return
	}
	now := time.Now()
	for i, name := range frameSections {
		if name == section {
			p.row[i] += now.Sub(p.mark)
			break
		}
	}
	p.mark = now
}

func (p *profiler) endFrame() {
	if p == nil {
		return
	}
	total := time.Since(p.start)
	var b strings.Builder
	b.WriteString(p.start.Format(time.RFC3339Nano))
	for i, d := range p.row {
		fmt.Fprintf(&b, ",%.3f", ms(d))
		p.sums[i] += d
	}
	fmt.Fprintf(&b, ",%.3f\n", ms(total))
	_, _ = io.WriteString(p.out, b.String())
	p.total += total
	p.count++
}

func (p *profiler) Close() error {
	if p == nil || p.out == nil {
		return nil
	}
	if p.count > 0 {
		fields := logrus.Fields{"frames": p.count, "total_ms": ms(p.total) / float64(p.count)}
		for i, name := range frameSections {
			fields[name+"_ms"] = ms(p.sums[i]) / float64(p.count)
		}
		p.log.WithFields(fields).Info("frame profile")
	}
	err := p.out.Close()
	p.out = nil
	return err
}

func ms(d time.Duration) float64 {
	return d.Seconds() * 1000
}
