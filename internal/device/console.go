package device

import (
	"bufio"
	"io"
)

type getRequest struct {
	done func(ch byte, eof bool)
}

type putRequest struct {
	ch   byte
	done func()
}

// Console is a line-buffered, single-character asynchronous input/output
// device, grounded on original_source/machine/synch_console.hh's
// ReadAvail/WriteDone completion pair.
type Console struct {
	in  *bufio.Reader
	out *bufio.Writer

	gets chan getRequest
	puts chan putRequest
}

// NewConsole starts the two goroutines that service Get/Put requests
// against in and out FIFO.
func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{
		in:   bufio.NewReader(in),
		out:  bufio.NewWriter(out),
		gets: make(chan getRequest, 32),
		puts: make(chan putRequest, 32),
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

func (c *Console) readLoop() {
	for req := range c.gets {
		b, err := c.in.ReadByte()
		if err != nil {
			req.done(0, true)
			continue
		}
		req.done(b, false)
	}
}

func (c *Console) writeLoop() {
	for req := range c.puts {
		c.out.WriteByte(req.ch)
		c.out.Flush()
		req.done()
	}
}

// GetRequest asynchronously reads one byte, invoking done with eof=true
// once the input stream is exhausted (the sentinel spec §4.3 calls for to
// terminate bulk reads).
func (c *Console) GetRequest(done func(ch byte, eof bool)) {
	c.gets <- getRequest{done: done}
}

// PutRequest asynchronously writes one byte.
func (c *Console) PutRequest(ch byte, done func()) {
	c.puts <- putRequest{ch: ch, done: done}
}

// Close stops both device goroutines.
func (c *Console) Close() {
	close(c.gets)
	close(c.puts)
}
