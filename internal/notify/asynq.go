package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"moringadaily/internal/metrics"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"
)

const (
	TaskDeliver = "notification:deliver"
	queueName   = "notifications"
)

// Queue 把通知编码为 asynq 任务，由 Worker 消费落库。
type Queue struct {
	client *asynq.Client
}

var _ Dispatcher = (*Queue)(nil)

func NewQueue(redisURL string) (*Queue, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	return &Queue{client: asynq.NewClient(opt)}, nil
}

func (q *Queue) Dispatch(ctx context.Context, n Notice) error {
	if err := n.validate(); err != nil {
		return err
	}
	if n.selfNotice() {
		return nil
	}
	task, err := newDeliverTask(n)
	if err != nil {
		return err
	}
	if _, err := q.client.EnqueueContext(ctx, task, asynq.Queue(queueName), asynq.MaxRetry(5)); err != nil {
		metrics.NotificationsTotal.WithLabelValues("queue", "error").Inc()
		return fmt.Errorf("enqueue notification: %w", err)
	}
	metrics.NotificationsTotal.WithLabelValues("queue", "ok").Inc()
	return nil
}

func (q *Queue) Close() error { return q.client.Close() }

func newDeliverTask(n Notice) (*asynq.Task, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDeliver, payload), nil
}

// HandleDeliver 返回处理 TaskDeliver 的 handler。负载损坏的任务跳过重试。
func HandleDeliver(w *Writer) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var n Notice
		if err := json.Unmarshal(t.Payload(), &n); err != nil {
			return fmt.Errorf("decode notice: %v: %w", err, asynq.SkipRetry)
		}
		if err := w.Write(ctx, n); err != nil {
			if errors.Is(err, ErrInvalidNotice) {
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			return err
		}
		return nil
	}
}

// NewWorker 构建消费通知队列的 asynq server。
func NewWorker(redisURL string, w *Writer, concurrency int) (*asynq.Server, *asynq.ServeMux, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("asynq: parse redis url: %w", err)
	}
	if concurrency <= 0 {
		concurrency = 10
	}
	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName: 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error().Err(err).Str("task", task.Type()).Msg("notification task failed")
		}),
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskDeliver, HandleDeliver(w))
	return srv, mux, nil
}
