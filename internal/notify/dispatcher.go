package notify

import (
	"context"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tphakala/preloadwatch/internal/errors"
	"github.com/tphakala/preloadwatch/internal/logger"
)

const (
	maxConcurrentDeliveries = 4
	defaultDeliveryTimeout  = 30 * time.Second
)

// Dispatcher fans a report out to every notifier after throttling.
type Dispatcher struct {
	notifiers []Notifier
	throttle  *Throttle
	observer  DeliveryObserver
	archive   *Archive
	log       logger.Logger
	timeout   time.Duration

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// NewDispatcher returns a dispatcher over notifiers. A nil throttle lets
// every notice through.
func NewDispatcher(throttle *Throttle, notifiers ...Notifier) *Dispatcher {
	d := &Dispatcher{throttle: throttle, log: GetLogger(), timeout: defaultDeliveryTimeout}
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		d.notifiers = append(d.notifiers, n)
		if a, ok := n.(*Archive); ok && d.archive == nil {
			d.archive = a
		}
	}
	return d
}

// SetObserver reports every delivery attempt to o.
func (d *Dispatcher) SetObserver(o DeliveryObserver) { d.observer = o }

// SetDeliveryTimeout bounds each background delivery started by Send.
// Zero or less restores the default.
func (d *Dispatcher) SetDeliveryTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	d.timeout = timeout
}

// Notifiers returns the configured notifier names in order.
func (d *Dispatcher) Notifiers() []string {
	names := make([]string, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		names = append(names, n.Name())
	}
	return names
}

// Archive returns the archive notifier, or nil.
func (d *Dispatcher) Archive() *Archive {
	if d == nil {
		return nil
	}
	return d.archive
}

// Dispatch throttles r and delivers what is left to every notifier in
// parallel. A failing notifier does not stop the others; their errors are
// joined.
func (d *Dispatcher) Dispatch(ctx context.Context, r Report) error {
	if d == nil || len(d.notifiers) == 0 {
		return nil
	}
	r.Notices = d.throttle.Filter(r.Notices)
	if r.Empty() {
		return nil
	}

	errs := make([]error, len(d.notifiers))
	var g errgroup.Group
	g.SetLimit(maxConcurrentDeliveries)
	for i, n := range d.notifiers {
		g.Go(func() error {
			err := n.Notify(ctx, r)
			if d.observer != nil {
				d.observer.ObserveDelivery(n.Name(), err)
			}
			if err != nil {
				d.log.Warn("notice delivery failed",
					logger.String("notifier", n.Name()),
					logger.String("unit_of_work", r.UnitOfWork),
					logger.Error(err))
				errs[i] = errors.New(err).
					Category(errors.CategoryNotification).
					Context("notifier", n.Name()).
					Build()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Send delivers r in the background and returns at once. The delivery
// outlives cancellation of ctx but not the delivery timeout. Reports sent
// after Close are dropped.
func (d *Dispatcher) Send(ctx context.Context, r Report) {
	if d == nil || len(d.notifiers) == 0 || r.Empty() {
		return
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Debug("dispatcher closed, report dropped", logger.String("unit_of_work", r.UnitOfWork))
		return
	}
	d.pending.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.pending.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.Dispatch(ctx, r); err != nil {
			d.log.Debug("background dispatch finished with errors",
				logger.String("unit_of_work", r.UnitOfWork), logger.Error(err))
		}
	}()
}

// Wait blocks until every delivery started by Send has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.pending.Wait()
}

// Close waits for background deliveries, then closes every notifier that
// holds resources.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.pending.Wait()

	var errs []error
	for _, n := range d.notifiers {
		if c, ok := n.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
