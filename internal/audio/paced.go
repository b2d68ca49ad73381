package audio

import "time"

// pacer emulates a hardware clock for sources that can produce data instantly.
type pacer struct {
	rate     int
	start    time.Time
	consumed int64
	now      func() time.Time
}

func newPacer(rate int) pacer {
	return pacer{rate: rate, start: time.Now(), now: time.Now}
}

func (p *pacer) available() int {
	elapsed := p.now().Sub(p.start)
	produced := int64(elapsed) * int64(p.rate) / int64(time.Second)
	avail := produced - p.consumed
	if avail < 0 {
		return 0
	}
	return int(avail)
}

// wait blocks until frames frames have elapsed on the emulated clock.
func (p *pacer) wait(frames int) {
	for {
		missing := frames - p.available()
		if missing <= 0 {
			break
		}
		time.Sleep(time.Duration(int64(missing) * int64(time.Second) / int64(p.rate)))
	}
	p.consumed += int64(frames)
}
