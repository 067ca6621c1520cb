// Package ingest implements the TCP server that agents push log lines to.
//
// Each connection carries newline-delimited JSON frames, one RawIngestMessage
// per line. Every connection is handled by its own goroutine; frames flow
// decode -> parse -> store append -> broadcast. A malformed frame is skipped,
// never fatal: only a genuine transport failure tears a connection down, and
// then only that connection.
package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/shepherdlog/shepherd/internal/domain/broadcast"
	"github.com/shepherdlog/shepherd/internal/domain/parser"
	"github.com/shepherdlog/shepherd/internal/domain/store"
	"github.com/shepherdlog/shepherd/internal/infrastructure/logging"
	"github.com/shepherdlog/shepherd/internal/infrastructure/monitoring"
	"github.com/shepherdlog/shepherd/internal/shared/id"
	"github.com/shepherdlog/shepherd/internal/shared/types"
)

// MaxLineBytes bounds a single ingest frame. An overlong line is consumed
// and dropped as a decode failure; agents never produce frames near this
// size.
const MaxLineBytes = 1 << 20

// Server accepts agent connections and feeds decoded records into the
// store and broadcaster.
type Server struct {
	addr    string
	parser  parser.Parser
	store   *store.Store
	bcast   *broadcast.Broadcaster
	ids     *id.Generator
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu     sync.Mutex
	ln     net.Listener
	conns  map[net.Conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates an ingestion server listening on addr once Run is
// called.
func NewServer(addr string, p parser.Parser, st *store.Store, b *broadcast.Broadcaster, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		addr:   addr,
		parser: p,
		store:  st,
		bcast:  b,
		ids:    id.Default(),
		logger: logger,
		conns:  make(map[net.Conn]struct{}),
	}
}

// WithMetrics adds metrics tracking to the server.
func (s *Server) WithMetrics(m *monitoring.Metrics) *Server {
	s.metrics = m
	return s
}

// Addr returns the bound listener address, or empty before Run.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Run binds the listener and accepts connections until Close. Each
// connection is served by its own goroutine; connections are fully
// independent and never block one another.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("ingest listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("ingest server listening", zap.String("addr", ln.Addr().String()))

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("ingest accept: %w", err)
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return nil
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handleConn(conn)
	}
}

// Close stops the accept loop, closes all live connections, and waits for
// their handlers to drain.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.ln
	conns := make([]net.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, c := range conns {
		c.Close()
	}
	s.wg.Wait()
	return nil
}

// handleConn reads newline-delimited frames until the peer disconnects or
// a read error occurs. An unterminated final line at EOF is discarded.
func (s *Server) handleConn(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	s.logger.Info("agent connected", zap.String("remote", remote))
	if s.metrics != nil {
		s.metrics.IncIngestConnections()
	}

	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.wg.Done()
		if s.metrics != nil {
			s.metrics.DecIngestConnections()
		}
		s.logger.Info("agent disconnected", zap.String("remote", remote))
	}()

	reader := bufio.NewReaderSize(conn, MaxLineBytes)
	for {
		line, err := reader.ReadSlice('\n')
		if err != nil {
			switch {
			case errors.Is(err, bufio.ErrBufferFull):
				// Frame exceeds MaxLineBytes. Drain the rest of the line
				// and drop it.
				if s.metrics != nil {
					s.metrics.IncDecodeFailures()
				}
				s.logger.Warn("dropping oversized frame", zap.String("remote", remote))
				if skipErr := skipToNewline(reader); skipErr != nil {
					return
				}
				continue
			case errors.Is(err, io.EOF):
				// A trailing fragment without its newline is an incomplete
				// frame and is discarded.
				return
			default:
				s.logger.Warn("agent read error", zap.String("remote", remote), zap.Error(err))
				return
			}
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		s.processLine(line, remote)
	}
}

// skipToNewline consumes input up to and including the next newline.
func skipToNewline(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		if err == nil {
			return nil
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return err
		}
	}
}

// processLine decodes one frame and pushes it through the pipeline. Decode
// failures are counted and skipped; they never close the connection.
func (s *Server) processLine(line []byte, remote string) {
	var msg types.RawIngestMessage
	if err := sonic.Unmarshal(line, &msg); err != nil {
		if s.metrics != nil {
			s.metrics.IncDecodeFailures()
		}
		s.logger.Debug("skipping undecodable frame",
			zap.String("remote", remote),
			zap.Error(err),
		)
		return
	}

	if msg.Timestamp == 0 {
		msg.Timestamp = float64(time.Now().UnixNano()) / float64(time.Second)
	}

	rec := types.LogRecord{
		ID:        s.ids.GenerateWithPrefix(id.RecordPrefix),
		Timestamp: msg.Timestamp,
		RawLine:   msg.RawLine,
		Source:    msg.Source,
		Parsed:    s.parser.Parse(msg.RawLine),
		Metadata:  msg.Metadata,
	}

	s.store.Append(rec)
	s.bcast.Broadcast(rec)

	if s.metrics != nil {
		s.metrics.IncRecordsIngested()
	}
	s.logger.Debug("record ingested",
		zap.String("record_id", rec.ID),
		zap.String("source", rec.Source),
		zap.Int("status", rec.Parsed.StatusCode),
	)
}
