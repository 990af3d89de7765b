package vm

import "github.com/google/uuid"

// YieldToken is handed to the VM by a native function that suspends.
// The VM registers a resume callback with OnFinished and then calls Start.
type YieldToken interface {
	OnFinished(handler func())
	Start()
}

// Token is the standard YieldToken. Handlers run once, in registration
// order, as soon as the token has been both started and finished; a handler
// registered after that runs immediately.
type Token struct {
	ID uuid.UUID

	onStart  func(t *Token)
	handlers []func()
	started  bool
	finished bool
}

// NewToken creates a token. onStart, if not nil, runs when the VM starts
// waiting and typically kicks off the asynchronous work.
func NewToken(onStart func(t *Token)) *Token {
	return &Token{ID: uuid.New(), onStart: onStart}
}

// OnFinished registers a completion handler
func (t *Token) OnFinished(handler func()) {
	t.handlers = append(t.handlers, handler)
	t.fire()
}

// Start marks the token as waited on
func (t *Token) Start() {
	if t.started {
		return
	}
	t.started = true
	if t.onStart != nil {
		t.onStart(t)
	}
	t.fire()
}

// Finish completes the token
func (t *Token) Finish() {
	if t.finished {
		return
	}
	t.finished = true
	t.fire()
}

// Finished reports whether Finish has been called
func (t *Token) Finished() bool { return t.finished }

func (t *Token) fire() {
	if !t.started || !t.finished {
		return
	}
	for len(t.handlers) > 0 {
		h := t.handlers[0]
		t.handlers = t.handlers[1:]
		h()
	}
}
