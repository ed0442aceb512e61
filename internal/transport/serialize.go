package transport

// Serialize wraps stream so that every completion it delivers is posted to
// w instead of being invoked directly on whatever goroutine the stream
// chose to run on. This is the seam where an "interrupt posts an event to
// the queue" model meets a Go ByteStream: framer and mux code never has to
// reason about which goroutine it's called from, because every completer
// they register is only ever invoked from w's loop.
func Serialize(stream ByteStream, w *Worker) ByteStream {
	return &serializedStream{stream: stream, w: w}
}

type serializedStream struct {
	stream ByteStream
	w      *Worker
}

func (s *serializedStream) StartWrite(buf []byte, done WriteCompleter) {
	s.stream.StartWrite(buf, func(r WriteResult) {
		s.w.Post(func() { done(r) })
	})
}

func (s *serializedStream) CancelWrite() { s.stream.CancelWrite() }

func (s *serializedStream) StartRead(buf []byte, done ReadCompleter) {
	s.stream.StartRead(buf, func(r ReadResult) {
		s.w.Post(func() { done(r) })
	})
}

func (s *serializedStream) CancelRead() { s.stream.CancelRead() }
