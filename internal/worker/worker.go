package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/datachat/backend/internal/analysis"
	"github.com/datachat/backend/internal/storage"
	"github.com/datachat/backend/pkg/logger"
)

// AnalysisWorker consumes upload analysis jobs so large datasets do not hold
// the upload request open. Malformed payloads and unknown sessions are
// dropped rather than redelivered.
type AnalysisWorker struct {
	conn     *amqp.Connection
	store    storage.Store
	reporter *analysis.Reporter
	queue    string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAnalysisWorker(conn *amqp.Connection, store storage.Store, reporter *analysis.Reporter, queue string) *AnalysisWorker {
	return &AnalysisWorker{
		conn:     conn,
		store:    store,
		reporter: reporter,
		queue:    queue,
	}
}

func (w *AnalysisWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if _, err := ch.QueueDeclare(w.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(w.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	logger.Info("Analysis worker started", zap.String("queue", w.queue))

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *AnalysisWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job AnalysisJob
	if err := json.Unmarshal(d.Body, &job); err != nil || job.SessionID == "" {
		logger.Warn("Dropping malformed analysis job", zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	session, err := w.store.GetSession(ctx, job.SessionID)
	if err != nil {
		logger.Warn("Dropping analysis job for unknown session",
			zap.String("session_id", job.SessionID),
			zap.Error(err),
		)
		_ = d.Nack(false, false)
		return
	}

	w.reporter.ReportFromSession(ctx, session)
	_ = d.Ack(false)

	logger.Info("Analysis job completed", zap.String("session_id", job.SessionID))
}

func (w *AnalysisWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
