package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// Handler returns nil only when the message is done with and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *logrus.Entry
}

func NewConsumer(brokers []string, group string, topics []string, workers int, log *logrus.Entry) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, log: log}
}

const (
	retryMin = 200 * time.Millisecond
	retryMax = 5 * time.Second
)

// Start fetches messages and hands them to a pool of workers until ctx is
// done. All messages of one partition go to the same worker, so a partition
// is handled and committed strictly in offset order.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				c.handle(ctx, h, m)
			}
		}(jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[workerFor(m.Partition, c.workers)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

// handle retries h until it succeeds and only then commits. A failing
// message blocks its partition; later offsets are never committed past it.
func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) {
	log := c.log.WithFields(logrus.Fields{"topic": m.Topic, "partition": m.Partition, "offset": m.Offset})
	err := retry(ctx, retryMin, retryMax, func(ctx context.Context) error {
		return h(ctx, m)
	}, func(err error, wait time.Duration) {
		log.WithError(err).WithField("retry_in", wait).Warn("handle message failed")
	})
	if err != nil {
		// shutting down; redelivered from the last commit
		return
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("commit offset failed")
	}
}

// retry calls fn until it returns nil or ctx is done, doubling the wait
// between attempts from base up to ceiling.
func retry(ctx context.Context, base, ceiling time.Duration, fn func(context.Context) error, onErr func(error, time.Duration)) error {
	wait := base
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if onErr != nil {
			onErr(err, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if wait *= 2; wait > ceiling {
			wait = ceiling
		}
	}
}

func workerFor(partition, n int) int {
	return partition % n
}
