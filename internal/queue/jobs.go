package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/relaydesk/relaydesk/internal/downloader"
	"github.com/relaydesk/relaydesk/internal/inbound"
)

// InboundJob carries a received webhook for asynchronous processing.
type InboundJob struct {
	SourceID int64          `json:"source_id"`
	Payload  map[string]any `json:"payload"`
}

// InboundEnqueuer hands webhooks to the processing pipeline.
type InboundEnqueuer interface {
	Enqueue(ctx context.Context, sourceID int64, payload map[string]any) error
}

// BrokerInbound publishes webhooks to the broker for the worker pool.
type BrokerInbound struct {
	publisher *Publisher
}

// NewBrokerInbound creates a broker-backed inbound enqueuer.
func NewBrokerInbound(publisher *Publisher) *BrokerInbound {
	return &BrokerInbound{publisher: publisher}
}

func (b *BrokerInbound) Enqueue(ctx context.Context, sourceID int64, payload map[string]any) error {
	return b.publisher.Publish(ctx, KeyInboundProcess, InboundJob{SourceID: sourceID, Payload: payload})
}

// InlineInbound runs the pipeline synchronously on the request path. Used
// when no broker is configured.
type InlineInbound struct {
	processor *inbound.Processor
}

// NewInlineInbound creates an in-process inbound enqueuer.
func NewInlineInbound(processor *inbound.Processor) *InlineInbound {
	return &InlineInbound{processor: processor}
}

func (i *InlineInbound) Enqueue(ctx context.Context, sourceID int64, payload map[string]any) error {
	_, err := i.processor.Process(ctx, sourceID, payload)
	return err
}

// BrokerDownloads publishes download jobs to the broker.
type BrokerDownloads struct {
	publisher *Publisher
}

// NewBrokerDownloads creates a broker-backed download scheduler.
func NewBrokerDownloads(publisher *Publisher) *BrokerDownloads {
	return &BrokerDownloads{publisher: publisher}
}

func (b *BrokerDownloads) Schedule(ctx context.Context, job downloader.Job) error {
	return b.publisher.Publish(ctx, KeyAttachmentDownload, job)
}

// DownloadProcessor runs one download job; the downloader.Worker
// implements it.
type DownloadProcessor interface {
	Process(ctx context.Context, job downloader.Job) error
}

// InlineDownloads runs download jobs on background goroutines with the
// same attempt budget the broker path gets.
type InlineDownloads struct {
	worker DownloadProcessor
	log    *slog.Logger
}

// NewInlineDownloads creates an in-process download scheduler.
func NewInlineDownloads(log *slog.Logger, worker DownloadProcessor) *InlineDownloads {
	return &InlineDownloads{worker: worker, log: log}
}

func (i *InlineDownloads) Schedule(_ context.Context, job downloader.Job) error {
	go func() {
		for attempt := 1; attempt <= MaxAttempts; attempt++ {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			err := i.worker.Process(ctx, job)
			cancel()
			if err == nil {
				return
			}
			i.log.Warn("download attempt failed",
				slog.Int64("message_id", job.MessageID),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
		}
		i.log.Error("download attempts exhausted",
			slog.Int64("message_id", job.MessageID),
			slog.String("url", job.URL))
	}()
	return nil
}

// RegisterHandlers binds the job routing keys to the processor and the
// download worker. Normalization failures are configuration or payload
// defects; retrying cannot fix them, so they ack and drop.
func RegisterHandlers(sub *Subscriber, processor *inbound.Processor, worker *downloader.Worker, log *slog.Logger) {
	sub.RegisterHandler(KeyInboundProcess, func(ctx context.Context, body []byte) error {
		var job InboundJob
		if err := json.Unmarshal(body, &job); err != nil {
			log.Error("malformed inbound job", slog.Any("error", err))
			return nil
		}
		_, err := processor.Process(ctx, job.SourceID, job.Payload)
		if inbound.IsNonRetryable(err) {
			log.Warn("inbound webhook rejected",
				slog.Int64("source_id", job.SourceID),
				slog.Any("error", err))
			return nil
		}
		return err
	})
	sub.RegisterHandler(KeyAttachmentDownload, func(ctx context.Context, body []byte) error {
		var job downloader.Job
		if err := json.Unmarshal(body, &job); err != nil {
			log.Error("malformed download job", slog.Any("error", err))
			return nil
		}
		return worker.Process(ctx, job)
	})
}
