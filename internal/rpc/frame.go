package rpc

import (
	"bufio"
	"errors"
	"net"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const bufSize = 32 * 1024

// livenessWait is how long check waits for a pooled connection to report a
// close before treating it as healthy.
const livenessWait = time.Millisecond

var errUnsolicitedData = errors.New("rpc: unsolicited data on idle connection")

type requestFrame struct {
	Method string             `msgpack:"method"`
	Header map[string]string  `msgpack:"header"`
	Body   msgpack.RawMessage `msgpack:"body"`
}

type responseFrame struct {
	Code    Code               `msgpack:"code"`
	Message string             `msgpack:"message"`
	Body    msgpack.RawMessage `msgpack:"body"`
}

// framedConn pairs a connection with its buffered msgpack codec. The decoder
// reads through the bufio.Reader directly, so it never consumes bytes that
// belong to the next frame.
type framedConn struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
	dec  *msgpack.Decoder
	enc  *msgpack.Encoder
}

func newFramedConn(conn net.Conn) *framedConn {
	r := bufio.NewReaderSize(conn, bufSize)
	w := bufio.NewWriterSize(conn, bufSize)
	return &framedConn{
		conn: conn,
		r:    r,
		w:    w,
		dec:  msgpack.NewDecoder(r),
		enc:  msgpack.NewEncoder(w),
	}
}

func (c *framedConn) write(v interface{}) error {
	if err := c.enc.Encode(v); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *framedConn) read(v interface{}) error {
	return c.dec.Decode(v)
}

// check reports whether an idle connection can carry another request. No call
// is in flight, so anything readable means the peer has gone or the stream is
// out of step. Only a read timeout counts as healthy.
func (c *framedConn) check() error {
	if c.r.Buffered() > 0 {
		return errUnsolicitedData
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(livenessWait)); err != nil {
		return err
	}
	_, err := c.r.Peek(1)
	if err == nil {
		return errUnsolicitedData
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		return err
	}
	return c.conn.SetReadDeadline(time.Time{})
}
