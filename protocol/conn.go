package protocol

import (
	"bufio"
	"net"
	"sync"
	"time"
)

// maxLineLength bounds a single protocol line.  A line that fills the buffer
// without a terminator is a protocol fault, not data to accumulate.
const maxLineLength = 16 * 1024

// connection is the active transport: a socket, a buffered reader for the
// read loop, and a command id counter scoped to this connection.  The counter
// resets implicitly whenever a new connection replaces the old one.
type connection struct {
	sock   net.Conn
	reader *bufio.Reader

	mu     sync.Mutex
	lastID int64
}

func newConnection(sock net.Conn) *connection {
	return &connection{
		sock:   sock,
		reader: bufio.NewReaderSize(sock, maxLineLength),
	}
}

// nextID allocates the next command id on this connection
func (c *connection) nextID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastID++
	return c.lastID
}

// write serializes req as a single CRLF-terminated JSON line
func (c *connection) write(req *Request) error {
	buf, err := req.encode()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.sock.Write(buf)
	return err
}

// writeRequest allocates an id and writes the request without registering any
// interest in a reply.  Used for keepalive probes.
func (c *connection) writeRequest(method string, params []interface{}) (int64, error) {
	id := c.nextID()
	return id, c.write(&Request{ID: id, Method: method, Params: params})
}

// readLine reads one line, waiting no longer than the supplied deadline.
// Lines longer than maxLineLength fail with bufio.ErrBufferFull rather than
// growing without bound.
func (c *connection) readLine(deadline time.Time) (string, error) {
	if err := c.sock.SetReadDeadline(deadline); err != nil {
		return ``, err
	}
	buf, err := c.reader.ReadSlice('\n')
	return string(buf), err
}

func (c *connection) localIP() string {
	if addr, ok := c.sock.LocalAddr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return ``
}

// close tears down the socket, swallowing errors from an already-closed one
func (c *connection) close() {
	_ = c.sock.Close()
}
