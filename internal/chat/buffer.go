package chat

import (
	"strings"
	"sync"
	"time"
)

// BufferConfig controls when accumulated fragments are flushed to the sink.
type BufferConfig struct {
	// FlushInterval bounds worst-case latency between a fragment arriving
	// and it becoming visible. Default: 100ms.
	FlushInterval time.Duration

	// MaxChars triggers an immediate flush once the accumulator exceeds it.
	// Default: 500.
	MaxChars int
}

// Buffer accumulates streamed text fragments and flushes them to the
// observable message state in larger chunks, cutting UI update frequency.
// A flush happens at the first of: the interval timer firing, a paragraph
// boundary (double newline) appearing, or the size cap being exceeded.
type Buffer struct {
	cfg  BufferConfig
	sink func(text string)

	mu     sync.Mutex
	acc    strings.Builder
	timer  *time.Timer
	closed bool
}

// NewBuffer creates a buffer whose flushes call sink with the entire
// accumulated text in one atomic append.
func NewBuffer(cfg BufferConfig, sink func(text string)) *Buffer {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 100 * time.Millisecond
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 500
	}
	return &Buffer{cfg: cfg, sink: sink}
}

// Append adds a fragment to the accumulator. Fragments flush in exactly the
// order they were appended.
func (b *Buffer) Append(fragment string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.acc.WriteString(fragment)

	if b.acc.Len() > b.cfg.MaxChars || strings.Contains(b.acc.String(), "\n\n") {
		b.flushLocked()
		return
	}

	// Only one timer may be outstanding; scheduling while one is pending
	// is a no-op.
	if b.timer == nil {
		b.timer = time.AfterFunc(b.cfg.FlushInterval, b.Flush)
	}
}

// Flush moves the entire accumulator into the sink and cancels any pending
// timer. Safe to call at any time, including with an empty accumulator.
func (b *Buffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

// Close flushes what is buffered and permanently disables the buffer.
// Fragments appended after Close are dropped, so a racing producer cannot
// grow the message once the stop decision is made.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
	b.closed = true
}

func (b *Buffer) flushLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.acc.Len() == 0 {
		return
	}
	text := b.acc.String()
	b.acc.Reset()
	b.sink(text)
}
