package notify

import (
	"context"

	"moringadaily/internal/metrics"
)

// Inline 在调用方 goroutine 内直接写库，未配置 Redis 时使用。
type Inline struct {
	w *Writer
}

var _ Dispatcher = (*Inline)(nil)

func NewInline(w *Writer) *Inline { return &Inline{w: w} }

func (d *Inline) Dispatch(ctx context.Context, n Notice) error {
	if err := d.w.Write(ctx, n); err != nil {
		metrics.NotificationsTotal.WithLabelValues("inline", "error").Inc()
		return err
	}
	metrics.NotificationsTotal.WithLabelValues("inline", "ok").Inc()
	return nil
}
