package pool

import (
	"net"
	"time"
)

// phaseConn enforces the read and write phase timeouts at the socket:
// each Read or Write gets a fresh deadline, so a stalled peer trips the
// matching phase rather than only the total deadline. Zero disables a
// phase, which also keeps idle pooled connections alive.
type phaseConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func newPhaseConn(c net.Conn, readTimeout, writeTimeout time.Duration) net.Conn {
	if readTimeout <= 0 && writeTimeout <= 0 {
		return c
	}
	return &phaseConn{Conn: c, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

func (c *phaseConn) Read(p []byte) (int, error) {
	if c.readTimeout > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *phaseConn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}
