package endpoint0

// heartbeat copies up to len(output) bytes of input back into output. It
// never fails: an empty input produces an empty reply.
func heartbeat(input, output []byte) (int, bool) {
	return copy(output, input), true
}
