package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/shepherdlog/shepherd/internal/infrastructure/logging"
)

// Agent connects a file tailer to the ingestion sender.
type Agent struct {
	cfg    Config
	logger *logging.Logger
}

// New creates an agent from a validated config.
func New(cfg Config, logger *logging.Logger) *Agent {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Agent{cfg: cfg, logger: logger}
}

// Run tails the configured file and ships lines until ctx is cancelled or
// the tailer fails.
func (a *Agent) Run(ctx context.Context) error {
	sender := NewSender(a.cfg.Server, a.cfg.Source, a.cfg.ReconnectDelay, a.logger)
	if err := sender.Connect(5); err != nil {
		return err
	}
	defer sender.Close()

	tailer := NewTailer(a.cfg.File, a.cfg.FromStart, a.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- tailer.Start(ctx)
	}()

	a.logger.Info("agent running",
		zap.String("file", a.cfg.File),
		zap.String("server", a.cfg.Server),
	)

	for {
		select {
		case line, ok := <-tailer.Lines():
			if !ok {
				return <-errCh
			}
			if err := sender.Send(line); err != nil {
				// The line is gone; keep tailing and try again with the next.
				a.logger.Warn("line dropped", zap.Error(err))
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
