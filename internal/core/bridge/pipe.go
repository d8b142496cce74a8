package bridge

import "sync"

// Chunk is one incremental message for the caller
type Chunk struct {
	Text string
	// Final marks the last content chunk; end-of-stream follows it
	Final bool
}

// Pipe carries chunks from the orchestration goroutine to the HTTP writer.
// The producer owns Send and Close; the consumer may Detach at any time,
// after which Send discards chunks instead of blocking.
type Pipe struct {
	ch   chan Chunk
	done chan struct{}

	closeOnce  sync.Once
	detachOnce sync.Once
}

func newPipe(buffer int) *Pipe {
	return &Pipe{
		ch:   make(chan Chunk, buffer),
		done: make(chan struct{}),
	}
}

// Send delivers c unless the consumer has gone away
func (p *Pipe) Send(c Chunk) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.ch <- c:
		return true
	case <-p.done:
		return false
	}
}

// Close ends the stream. Only the producer calls it.
func (p *Pipe) Close() {
	p.closeOnce.Do(func() { close(p.ch) })
}

// Detach tells the producer nobody is reading any more
func (p *Pipe) Detach() {
	p.detachOnce.Do(func() { close(p.done) })
}

// Chunks is the receive side; it is closed on every producer exit path
func (p *Pipe) Chunks() <-chan Chunk {
	return p.ch
}
