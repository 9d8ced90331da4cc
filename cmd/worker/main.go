package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"veriglow-backend/internal/bootstrap"
	"veriglow-backend/internal/compliance"
	"veriglow-backend/internal/queue"
	"veriglow-backend/internal/shared/config"
	"veriglow-backend/internal/shared/metrics"
	"veriglow-backend/internal/shared/telemetry"
	"veriglow-backend/internal/workerproc"
)

const (
	defaultSQSRegion          = "us-east-1"
	defaultVisibilitySeconds  = 1200
	defaultShutdownTimeoutSec = 30
	retentionSweepInterval    = 24 * time.Hour
	redisPollWait             = 5 * time.Second
)

func main() {
	cfg := config.Load()

	if cfg.QueueBackend != "sqs" && cfg.QueueBackend != "redis" {
		log.Fatal("QUEUE_BACKEND must be sqs or redis for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.BuildWorker(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	concurrency := cfg.WorkerConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	shutdownTimeout := time.Duration(envInt("SHUTDOWN_TIMEOUT_SECONDS", defaultShutdownTimeoutSec)) * time.Second

	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runRetentionSweeps(ctx, app.ComplianceService)
	}()

	log.Printf("worker started backend=%s concurrency=%d", cfg.QueueBackend, concurrency)

	switch cfg.QueueBackend {
	case "sqs":
		runSQS(ctx, cfg, app, sem, &wg)
	case "redis":
		runRedis(ctx, app, sem, &wg)
	}

	log.Printf("shutdown requested, waiting up to %s for in-flight jobs", shutdownTimeout)
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(shutdownTimeout):
		log.Printf("shutdown timeout reached; exiting with in-flight jobs")
	}
}

type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func runSQS(ctx context.Context, cfg config.Config, app *bootstrap.App, sem chan struct{}, wg *sync.WaitGroup) {
	queueURL := strings.TrimSpace(cfg.SQSQueueURL)
	region := strings.TrimSpace(cfg.AWSRegion)
	if region == "" {
		region = defaultSQSRegion
	}
	visibilitySeconds := envInt("SQS_VISIBILITY_TIMEOUT_SECONDS", defaultVisibilitySeconds)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		log.Printf("load aws config: %v", err)
		return
	}
	var client sqsAPI = sqs.NewFromConfig(awsCfg)

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		default:
		}

		resp, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     20,
			VisibilityTimeout:   int32(visibilitySeconds),
			AttributeNames:      []sqstypes.QueueAttributeName{sqstypes.QueueAttributeName("ApproximateReceiveCount")},
		})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				break pollLoop
			}
			log.Printf("receive message: %v", err)
			continue
		}

		for _, msg := range resp.Messages {
			select {
			case <-ctx.Done():
				break pollLoop
			case sem <- struct{}{}:
			}
			metrics.IncTaskJobsReceived()
			wg.Add(1)
			go func(m sqstypes.Message) {
				defer wg.Done()
				defer func() { <-sem }()
				handleSQSMessage(ctx, app.TasksService, client, queueURL, m)
			}(msg)
		}
	}
}

func handleSQSMessage(ctx context.Context, runner workerproc.Runner, client sqsAPI, queueURL string, msg sqstypes.Message) {
	body := aws.ToString(msg.Body)

	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields := baseFields(msg, "", decoded.RequestID)
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		switch err.(type) {
		case workerproc.ErrEmptyBody:
			telemetry.Error("worker.task.empty_body", fields)
		case workerproc.ErrMissingTaskID:
			telemetry.Error("worker.task.missing_id", fields)
		default:
			fields["error"] = err.Error()
			telemetry.Error("worker.task.decode_failed", fields)
		}
		if deleteMessage(ctx, client, queueURL, msg, "", "") {
			metrics.IncTaskJobsDeletedUnrecoverable()
		}
		return
	}

	telemetry.Info("worker.task.received", baseFields(msg, decoded.TaskID, decoded.RequestID))

	ctxWithParsed := workerproc.WithParsedMessage(ctx, decoded)
	if err := workerproc.HandleMessage(ctxWithParsed, runner, body); err != nil {
		var unknown workerproc.ErrUnknownTask
		if errors.As(err, &unknown) {
			telemetry.Error("worker.task.unknown", baseFields(msg, unknown.TaskID, unknown.RequestID))
			if deleteMessage(ctx, client, queueURL, msg, unknown.TaskID, unknown.RequestID) {
				metrics.IncTaskJobsDeletedUnrecoverable()
			}
			return
		}

		// Leave the message for redelivery after the visibility timeout.
		fields := baseFields(msg, decoded.TaskID, decoded.RequestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.task.process_failed", fields)
		metrics.IncTaskJobsFailed()
		return
	}

	if deleteMessage(ctx, client, queueURL, msg, decoded.TaskID, decoded.RequestID) {
		telemetry.Info("worker.task.acked", baseFields(msg, decoded.TaskID, decoded.RequestID))
	}
}

func deleteMessage(ctx context.Context, client sqsAPI, queueURL string, msg sqstypes.Message, taskID, requestID string) bool {
	receipt := aws.ToString(msg.ReceiptHandle)
	if receipt == "" {
		fields := baseFields(msg, taskID, requestID)
		fields["error"] = "missing receipt handle"
		telemetry.Error("worker.task.delete_failed", fields)
		return false
	}
	if _, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(receipt),
	}); err != nil {
		fields := baseFields(msg, taskID, requestID)
		fields["error"] = err.Error()
		telemetry.Error("worker.task.delete_failed", fields)
		return false
	}
	return true
}

func runRedis(ctx context.Context, app *bootstrap.App, sem chan struct{}, wg *sync.WaitGroup) {
	receiver, ok := app.Queue.(*queue.RedisClient)
	if !ok {
		log.Printf("queue client is not redis-backed")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		body, err := receiver.Receive(ctx, redisPollWait)
		if err != nil {
			if errors.Is(err, queue.ErrNoMessage) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			log.Printf("receive message: %v", err)
			time.Sleep(time.Second)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}
		metrics.IncTaskJobsReceived()
		wg.Add(1)
		go func(payload string) {
			defer wg.Done()
			defer func() { <-sem }()
			handleRedisMessage(ctx, app.TasksService, payload)
		}(body)
	}
}

// handleRedisMessage settles one popped message. BRPOP already consumed it,
// so failures here are logged rather than redelivered; task-level retries
// re-enqueue themselves.
func handleRedisMessage(ctx context.Context, runner workerproc.Runner, body string) {
	decoded, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		telemetry.Error("worker.task.decode_failed", map[string]any{
			"body_len":    meta.BodyLen,
			"body_sha256": meta.BodySHA,
			"error":       err.Error(),
		})
		metrics.IncTaskJobsDeletedUnrecoverable()
		return
	}

	fields := map[string]any{"task_id": decoded.TaskID, "request_id": decoded.RequestID}
	telemetry.Info("worker.task.received", fields)

	ctxWithParsed := workerproc.WithParsedMessage(ctx, decoded)
	if err := workerproc.HandleMessage(ctxWithParsed, runner, body); err != nil {
		var unknown workerproc.ErrUnknownTask
		if errors.As(err, &unknown) {
			telemetry.Error("worker.task.unknown", fields)
			metrics.IncTaskJobsDeletedUnrecoverable()
			return
		}
		fields["error"] = err.Error()
		telemetry.Error("worker.task.process_failed", fields)
		metrics.IncTaskJobsFailed()
		return
	}

	telemetry.Info("worker.task.acked", fields)
}

// runRetentionSweeps purges history past the retention window, once at boot
// and then daily.
func runRetentionSweeps(ctx context.Context, svc *compliance.Service) {
	sweep := func() {
		deleted, err := svc.RetentionSweep(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			telemetry.Error("worker.retention.failed", map[string]any{"error": err.Error()})
			return
		}
		telemetry.Info("worker.retention.completed", map[string]any{"deleted": deleted})
	}

	sweep()
	ticker := time.NewTicker(retentionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}

func baseFields(msg sqstypes.Message, taskID, requestID string) map[string]any {
	fields := map[string]any{
		"task_id":        taskID,
		"sqs_message_id": aws.ToString(msg.MessageId),
		"receive_count":  receiveCount(msg),
	}
	if strings.TrimSpace(requestID) != "" {
		fields["request_id"] = requestID
	}
	return fields
}

func receiveCount(msg sqstypes.Message) int {
	if msg.Attributes == nil {
		return 0
	}
	raw := msg.Attributes["ApproximateReceiveCount"]
	if raw == "" {
		return 0
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return parsed
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return val
}
