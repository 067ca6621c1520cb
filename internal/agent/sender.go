package agent

import (
	"fmt"
	"net"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shepherdlog/shepherd/internal/infrastructure/logging"
	"github.com/shepherdlog/shepherd/internal/infrastructure/resilience"
	"github.com/shepherdlog/shepherd/internal/shared/types"
)

// Sender ships RawIngestMessage frames to the ingestion server over a
// single TCP connection, redialing when it drops. A line that fails to
// send during a disconnect is dropped, not replayed.
type Sender struct {
	addr    string
	source  string
	agentID string
	delay   time.Duration
	logger  *logging.Logger
	breaker *resilience.Breaker

	conn net.Conn
}

// NewSender creates a sender for the given ingestion address.
func NewSender(addr, source string, delay time.Duration, logger *logging.Logger) *Sender {
	if logger == nil {
		logger = logging.NewNop()
	}
	if delay <= 0 {
		delay = time.Second
	}
	return &Sender{
		addr:    addr,
		source:  source,
		agentID: uuid.NewString(),
		delay:   delay,
		logger:  logger,
		breaker: resilience.NewBreaker(5, 10*time.Second),
	}
}

// Connect dials the ingestion server, retrying up to attempts times. A
// run of failed dials trips the breaker, after which attempts fail fast
// until the cooldown expires.
func (s *Sender) Connect(attempts int) error {
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			time.Sleep(s.delay)
		}
		err = s.breaker.Do(s.dial)
		if err == nil {
			s.logger.Info("connected to ingestion server", zap.String("addr", s.addr))
			return nil
		}
		s.logger.Warn("connect failed", zap.String("addr", s.addr), zap.Error(err))
	}
	return fmt.Errorf("connect to %s: %w", s.addr, err)
}

func (s *Sender) dial() error {
	conn, err := net.Dial("tcp", s.addr)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

// Send frames one log line and writes it. On a write failure the
// connection is redialed once and the same frame retried; if that also
// fails the line is lost and the error returned.
func (s *Sender) Send(line string) error {
	frame, err := sonic.Marshal(types.RawIngestMessage{
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		RawLine:   line,
		Source:    s.source,
		Metadata:  map[string]interface{}{"agent_id": s.agentID},
	})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	frame = append(frame, '\n')

	if s.conn == nil {
		if err := s.Connect(1); err != nil {
			return err
		}
	}

	_, werr := s.conn.Write(frame)
	if werr == nil {
		return nil
	}

	s.logger.Warn("write failed, reconnecting", zap.Error(werr))
	s.conn.Close()
	s.conn = nil
	if err := s.Connect(1); err != nil {
		return err
	}

	if _, err := s.conn.Write(frame); err != nil {
		s.conn.Close()
		s.conn = nil
		return fmt.Errorf("send after reconnect: %w", err)
	}
	return nil
}

// Close releases the connection.
func (s *Sender) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
