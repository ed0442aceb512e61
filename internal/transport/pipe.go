package transport

import (
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// NewPipe returns two ByteStream endpoints connected in memory, for tests
// and for the "loop" self-test backend that exercises a client and server
// mux against each other without real hardware.
func NewPipe() (a, b ByteStream) {
	ca, cb := net.Pipe()
	return &pipeStream{conn: ca}, &pipeStream{conn: cb}
}

// pipeStream adapts a net.Conn (synchronous) to the asynchronous ByteStream
// contract by running each Start call on its own goroutine and using write/
// read deadlines to implement best-effort cancellation.
type pipeStream struct {
	conn net.Conn

	mu          sync.Mutex
	writeCancel bool
	readCancel  bool
}

func (p *pipeStream) StartWrite(buf []byte, done WriteCompleter) {
	go func() {
		n, err := p.conn.Write(buf)
		p.mu.Lock()
		cancelled := p.writeCancel
		p.writeCancel = false
		p.mu.Unlock()
		done(WriteResult{Status: classify(err, cancelled), N: n})
	}()
}

func (p *pipeStream) CancelWrite() {
	p.mu.Lock()
	p.writeCancel = true
	p.mu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now())
	// Clear the deadline shortly after so future writes are not affected;
	// the in-flight Write has already observed the expired deadline by the
	// time callers expect a completion.
	go func() {
		time.Sleep(time.Millisecond)
		_ = p.conn.SetWriteDeadline(time.Time{})
	}()
}

func (p *pipeStream) StartRead(buf []byte, done ReadCompleter) {
	go func() {
		n, err := p.conn.Read(buf)
		p.mu.Lock()
		cancelled := p.readCancel
		p.readCancel = false
		p.mu.Unlock()
		done(ReadResult{Status: classify(err, cancelled), N: n})
	}()
}

func (p *pipeStream) CancelRead() {
	p.mu.Lock()
	p.readCancel = true
	p.mu.Unlock()
	_ = p.conn.SetReadDeadline(time.Now())
	go func() {
		time.Sleep(time.Millisecond)
		_ = p.conn.SetReadDeadline(time.Time{})
	}()
}

// Close closes the underlying connection; any in-flight Start call
// completes with StatusClosed.
func (p *pipeStream) Close() error { return p.conn.Close() }

func classify(err error, cancelled bool) Status {
	if err == nil {
		return StatusOK
	}
	if cancelled {
		return StatusCancelled
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return StatusClosed
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return StatusCancelled
	}
	return StatusError
}
