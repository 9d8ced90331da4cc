package main

// Build the Lambda handler binary:
//   GOOS=linux GOARCH=amd64 CGO_ENABLED=0 go build -o bootstrap ./cmd/lambda-worker

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"veriglow-backend/internal/bootstrap"
	"veriglow-backend/internal/shared/config"
	"veriglow-backend/internal/shared/metrics"
	"veriglow-backend/internal/shared/telemetry"
	"veriglow-backend/internal/workerproc"
)

var (
	initOnce sync.Once
	initErr  error
	app      *bootstrap.App
)

func initApp() {
	cfg := config.Load()
	built, err := bootstrap.BuildWorker(cfg)
	if err != nil {
		initErr = err
		return
	}
	app = built
}

// handler processes an SQS batch. Only retryable failures are reported back;
// malformed messages and messages for tasks that no longer exist would fail
// forever, so they are acknowledged and counted instead.
func handler(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	initOnce.Do(initApp)
	if initErr != nil {
		log.Printf("bootstrap error: %v", initErr)
		failures := make([]events.SQSBatchItemFailure, 0, len(event.Records))
		for _, record := range event.Records {
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
		}
		return events.SQSEventResponse{BatchItemFailures: failures}, initErr
	}

	failures := make([]events.SQSBatchItemFailure, 0)
	for _, record := range event.Records {
		metrics.IncTaskJobsReceived()
		err := workerproc.HandleMessage(ctx, app.TasksService, record.Body)
		if err == nil {
			continue
		}

		var procErr workerproc.ErrProcess
		if errors.As(err, &procErr) {
			telemetry.Error("worker.task.process_failed", map[string]any{
				"task_id":        procErr.TaskID,
				"request_id":     procErr.RequestID,
				"sqs_message_id": record.MessageId,
				"error":          procErr.Err.Error(),
			})
			metrics.IncTaskJobsFailed()
			failures = append(failures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}

		telemetry.Error("worker.task.dropped", map[string]any{
			"sqs_message_id": record.MessageId,
			"error":          err.Error(),
		})
		metrics.IncTaskJobsDeletedUnrecoverable()
	}

	return events.SQSEventResponse{BatchItemFailures: failures}, nil
}

func main() {
	lambda.Start(handler)
}
