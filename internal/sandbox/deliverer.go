package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/frahmantamala/paypal-activation/internal/paypal"
)

type DelivererConfig struct {
	IPNURL       string
	MaxWorkers   int
	JobQueueSize int
	MaxAttempts  int
	RetryDelay   time.Duration
	// Delay holds the first attempt back so the browser redirect usually wins.
	Delay time.Duration
}

// Deliverer posts notifications to the listener from a worker pool and retries until
// the listener answers "success", the way the processor does.
type Deliverer struct {
	http        *resty.Client
	ipnURL      string
	maxAttempts int
	retryDelay  time.Duration
	delay       time.Duration
	logger      *slog.Logger

	jobQueue   chan DeliveryJob
	workerPool chan chan DeliveryJob
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once

	mu        sync.Mutex
	delivered map[string]struct{}
}

func NewDeliverer(config DelivererConfig, logger *slog.Logger) *Deliverer {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := config.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	jobQueueSize := config.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 100
	}
	maxAttempts := config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Deliverer{
		http:        resty.New().SetTimeout(10 * time.Second),
		ipnURL:      config.IPNURL,
		maxAttempts: maxAttempts,
		retryDelay:  config.RetryDelay,
		delay:       config.Delay,
		logger:      logger,

		maxWorkers: maxWorkers,
		jobQueue:   make(chan DeliveryJob, jobQueueSize),
		workerPool: make(chan chan DeliveryJob, maxWorkers),
		ctx:        ctx,
		cancel:     cancel,
		delivered:  make(map[string]struct{}),
	}

	d.start()
	return d
}

func (d *Deliverer) start() {
	d.once.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			worker := NewWorker(i, d.workerPool, d.logger)
			worker.Start(d.ctx, &d.wg, d.process)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("ipn delivery worker pool started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue))
	})
}

func (d *Deliverer) dispatch() {
	defer d.wg.Done()

	for {
		select {
		case job := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- job:
				case <-d.ctx.Done():
					return
				}
			case <-d.ctx.Done():
				return
			}
		case <-d.ctx.Done():
			d.logger.Info("ipn dispatcher shutting down")
			return
		}
	}
}

// Enqueue schedules a notification. It is remembered as genuine right away so a
// verification racing the first attempt still succeeds.
func (d *Deliverer) Enqueue(paymentID string, fields []paypal.Field) error {
	d.remember(fields)

	select {
	case d.jobQueue <- DeliveryJob{PaymentID: paymentID, Fields: fields, Attempt: 1}:
		return nil
	default:
		return fmt.Errorf("ipn queue full (%d)", cap(d.jobQueue))
	}
}

// Genuine reports whether fields are exactly a notification this sandbox sent.
func (d *Deliverer) Genuine(fields []paypal.Field) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.delivered[paypal.EncodeFields(fields)]
	return ok
}

func (d *Deliverer) Shutdown() {
	d.logger.Info("shutting down ipn deliverer")
	d.cancel()
	d.wg.Wait()
	d.logger.Info("ipn deliverer shutdown complete")
}

func (d *Deliverer) remember(fields []paypal.Field) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delivered[paypal.EncodeFields(fields)] = struct{}{}
}

func (d *Deliverer) process(job DeliveryJob) {
	wait := d.delay
	if job.Attempt > 1 {
		wait = d.retryDelay * time.Duration(job.Attempt-1)
	}
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-d.ctx.Done():
			return
		}
	}

	resp, err := d.http.R().
		SetContext(d.ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(paypal.EncodeFields(job.Fields)).
		Post(d.ipnURL)

	if err == nil && resp.IsSuccess() && resp.String() == "success" {
		d.logger.Info("ipn delivered", "payment_id", job.PaymentID, "attempt", job.Attempt)
		return
	}

	if err != nil {
		d.logger.Warn("ipn delivery failed", "payment_id", job.PaymentID, "attempt", job.Attempt, "error", err)
	} else {
		d.logger.Warn("ipn not acknowledged", "payment_id", job.PaymentID, "attempt", job.Attempt,
			"status_code", resp.StatusCode(), "body", resp.String())
	}

	if job.Attempt >= d.maxAttempts {
		d.logger.Error("ipn delivery abandoned", "payment_id", job.PaymentID, "attempts", job.Attempt)
		return
	}

	job.Attempt++
	select {
	case d.jobQueue <- job:
	case <-d.ctx.Done():
	default:
		d.logger.Error("ipn queue full, dropping retry", "payment_id", job.PaymentID)
	}
}
