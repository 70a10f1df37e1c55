package sandbox

import (
	"context"
	"log/slog"
	"sync"

	"github.com/frahmantamala/paypal-activation/internal/paypal"
)

// DeliveryJob is one attempt at posting a notification to the listener.
type DeliveryJob struct {
	PaymentID string
	Fields    []paypal.Field
	Attempt   int
}

type Worker struct {
	ID         int
	WorkerPool chan chan DeliveryJob
	JobChannel chan DeliveryJob
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan DeliveryJob, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan DeliveryJob),
		Logger:     logger,
	}
}

// Start registers the worker's channel with the pool each time it is idle.
func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, process func(DeliveryJob)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker delivering notification", "worker_id", w.ID, "payment_id", job.PaymentID, "attempt", job.Attempt)
				process(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}
