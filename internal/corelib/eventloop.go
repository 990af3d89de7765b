package corelib

import (
	"context"
	"sort"
)

// EventLoop runs scheduled callbacks on the goroutine that drives it. Time
// is counted in turns.
type EventLoop struct {
	turn  int
	seq   int
	timer []timer
}

type timer struct {
	due int
	seq int
	fn  func()
}

// NewEventLoop creates an idle loop
func NewEventLoop() *EventLoop {
	return &EventLoop{}
}

// After schedules fn to run ticks turns from now; ticks <= 0 runs on the
// next turn
func (l *EventLoop) After(ticks int, fn func()) {
	if ticks < 1 {
		ticks = 1
	}
	l.seq++
	l.timer = append(l.timer, timer{due: l.turn + ticks, seq: l.seq, fn: fn})
}

// Pending returns the number of scheduled callbacks
func (l *EventLoop) Pending() int { return len(l.timer) }

// Turn advances one turn and runs every callback that became due, in
// scheduling order. Callbacks may schedule more work.
func (l *EventLoop) Turn() {
	l.turn++
	var due, rest []timer
	for _, t := range l.timer {
		if t.due <= l.turn {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	l.timer = rest
	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	for _, t := range due {
		t.fn()
	}
}

// Run turns the loop until nothing is scheduled or ctx is done
func (l *EventLoop) Run(ctx context.Context) error {
	for len(l.timer) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.Turn()
	}
	return nil
}
