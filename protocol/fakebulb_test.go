package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
)

// fakeRequest is one decoded request line along with the connection it
// arrived on, so replies can be routed back to the right socket
type fakeRequest struct {
	conn net.Conn
	req  Request
}

// fakeBulb emulates the device side of the protocol: it accepts forward
// connections, decodes request lines into a channel for assertions, and can
// drive scripted replies, notifications and reverse music mode connections.
type fakeBulb struct {
	ln       net.Listener
	requests chan fakeRequest

	mu        sync.Mutex
	conns     []net.Conn
	respond   func(conn net.Conn, req *Request)
	connected func(conn net.Conn)
	closed    bool
}

func newFakeBulb() *fakeBulb {
	ln, err := net.Listen(`tcp`, `127.0.0.1:0`)
	if err != nil {
		panic(err)
	}
	fb := &fakeBulb{
		ln:       ln,
		requests: make(chan fakeRequest, 64),
	}
	go fb.acceptLoop(ln)
	return fb
}

func (fb *fakeBulb) host() string {
	return fb.ln.Addr().String()
}

// onRequest installs a scripted responder invoked for every decoded request
func (fb *fakeBulb) onRequest(fn func(conn net.Conn, req *Request)) {
	fb.mu.Lock()
	fb.respond = fn
	fb.mu.Unlock()
}

// answerProperties makes the bulb answer every get_prop with the supplied
// value for each requested name
func (fb *fakeBulb) answerProperties(value string) {
	fb.onRequest(func(conn net.Conn, req *Request) {
		if req.Method != `get_prop` {
			return
		}
		result := make([]interface{}, len(req.Params))
		for i := range req.Params {
			result[i] = value
		}
		fb.reply(conn, req.ID, result)
	})
}

// onConnect installs a hook invoked for every accepted or dialed connection,
// before any request is read from it
func (fb *fakeBulb) onConnect(fn func(conn net.Conn)) {
	fb.mu.Lock()
	fb.connected = fn
	fb.mu.Unlock()
}

func (fb *fakeBulb) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		fb.adopt(conn)
	}
}

// refuse stops accepting new connections and drops the existing ones
func (fb *fakeBulb) refuse() {
	_ = fb.ln.Close()
	fb.dropConns()
}

// resume starts accepting again on the same address after refuse
func (fb *fakeBulb) resume() {
	ln, err := net.Listen(`tcp`, fb.ln.Addr().String())
	if err != nil {
		panic(err)
	}
	fb.mu.Lock()
	fb.ln = ln
	fb.mu.Unlock()
	go fb.acceptLoop(ln)
}

// adopt starts reading request lines from conn.  Used for accepted forward
// connections and for reverse connections the bulb dialed itself.
func (fb *fakeBulb) adopt(conn net.Conn) {
	fb.mu.Lock()
	fb.conns = append(fb.conns, conn)
	connected := fb.connected
	fb.mu.Unlock()
	if connected != nil {
		connected(conn)
	}
	go fb.readLoop(conn)
}

func (fb *fakeBulb) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		req := Request{}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}
		fb.mu.Lock()
		respond := fb.respond
		closed := fb.closed
		fb.mu.Unlock()
		if closed {
			return
		}
		if respond != nil {
			respond(conn, &req)
		}
		select {
		case fb.requests <- fakeRequest{conn: conn, req: req}:
		default:
		}
	}
}

func (fb *fakeBulb) writeLine(conn net.Conn, line string) {
	_, _ = conn.Write([]byte(line + "\r\n"))
}

func (fb *fakeBulb) reply(conn net.Conn, id int64, result []interface{}) {
	buf, _ := json.Marshal(map[string]interface{}{`id`: id, `result`: result})
	fb.writeLine(conn, string(buf))
}

func (fb *fakeBulb) replyError(conn net.Conn, id int64, code int, message string) {
	fb.writeLine(conn, fmt.Sprintf(`{"id":%d,"error":{"code":%d,"message":%q}}`, id, code, message))
}

func (fb *fakeBulb) notifyProps(conn net.Conn, params map[string]interface{}) {
	buf, _ := json.Marshal(map[string]interface{}{`method`: `props`, `params`: params})
	fb.writeLine(conn, string(buf))
}

// lastConn returns the most recently established connection, nil when there
// is none
func (fb *fakeBulb) lastConn() net.Conn {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if len(fb.conns) == 0 {
		return nil
	}
	return fb.conns[len(fb.conns)-1]
}

// drainRequests discards requests already decoded, so assertions only see
// traffic from this point on
func (fb *fakeBulb) drainRequests() {
	for {
		select {
		case <-fb.requests:
		default:
			return
		}
	}
}

// dropConns closes every active connection without stopping the listener,
// simulating the device dropping the session
func (fb *fakeBulb) dropConns() {
	fb.mu.Lock()
	conns := fb.conns
	fb.conns = nil
	fb.mu.Unlock()
	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (fb *fakeBulb) close() {
	fb.mu.Lock()
	fb.closed = true
	fb.mu.Unlock()
	_ = fb.ln.Close()
	fb.dropConns()
}
