package agent

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherdlog/shepherd/internal/shared/types"
)

func TestSenderFramesLines(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := NewSender(ln.Addr().String(), "web-01", time.Millisecond, nil)
	require.NoError(t, s.Connect(1))
	defer s.Close()

	conn, err := ln.Accept()
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, s.Send(`192.168.1.1 - - [x] "GET / HTTP/1.1" 200 100 "-" "ua"`))

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var msg types.RawIngestMessage
	require.NoError(t, sonic.Unmarshal(line, &msg))
	assert.Equal(t, "web-01", msg.Source)
	assert.Contains(t, msg.RawLine, "GET / HTTP/1.1")
	assert.Greater(t, msg.Timestamp, 0.0)
	assert.NotEmpty(t, msg.Metadata["agent_id"])
}

func TestSenderReconnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := NewSender(ln.Addr().String(), "web-01", time.Millisecond, nil)
	require.NoError(t, s.Connect(1))
	defer s.Close()

	first, err := ln.Accept()
	require.NoError(t, err)
	first.Close()

	// The dead peer may need more than one send to surface as an error;
	// eventually a send lands on a fresh connection.
	accepted := make(chan net.Conn, 1)
	go func() {
		if conn, err := ln.Accept(); err == nil {
			accepted <- conn
		}
	}()

	require.Eventually(t, func() bool {
		s.Send("retry line")
		select {
		case conn := <-accepted:
			defer conn.Close()
			return true
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSenderConnectFailure(t *testing.T) {
	s := NewSender("127.0.0.1:1", "x", time.Millisecond, nil)
	assert.Error(t, s.Connect(2))
}
