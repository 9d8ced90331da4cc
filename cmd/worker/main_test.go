package main

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"veriglow-backend/internal/queue"
	"veriglow-backend/internal/tasks"
)

type fakeSQS struct {
	deleted []string
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	_ = ctx
	_ = params
	_ = optFns
	return &sqs.ReceiveMessageOutput{}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	_ = ctx
	_ = optFns
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeRunner struct {
	err error
	ran []string
}

func (f *fakeRunner) Run(ctx context.Context, taskID, requestID string) error {
	_ = ctx
	_ = requestID
	f.ran = append(f.ran, taskID)
	return f.err
}

func sqsMessage(t *testing.T, id, receipt, taskID string) sqstypes.Message {
	t.Helper()
	body, err := queue.EncodeMessage(queue.Message{TaskID: taskID, RequestID: "req-" + taskID})
	if err != nil {
		t.Fatalf("encode message: %v", err)
	}
	return sqstypes.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(string(body)),
		Attributes:    map[string]string{"ApproximateReceiveCount": "1"},
	}
}

func TestWorkerDeletesMessageOnSuccess(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{}

	handleSQSMessage(context.Background(), runner, client, "queue", sqsMessage(t, "m1", "r1", "task-1"))

	if len(runner.ran) != 1 || runner.ran[0] != "task-1" {
		t.Fatalf("expected task-1 to run, got %v", runner.ran)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDoesNotDeleteOnProcessFailure(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{err: errors.New("boom")}

	handleSQSMessage(context.Background(), runner, client, "queue", sqsMessage(t, "m2", "r2", "task-2"))

	if len(client.deleted) != 0 {
		t.Fatalf("expected no delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnUnknownTask(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{err: tasks.ErrNotFound}

	handleSQSMessage(context.Background(), runner, client, "queue", sqsMessage(t, "m3", "r3", "task-3"))

	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnInvalidJSON(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m4"),
		ReceiptHandle: aws.String("r4"),
		Body:          aws.String("{bad-json"),
	}

	handleSQSMessage(context.Background(), runner, client, "queue", msg)

	if len(runner.ran) != 0 {
		t.Fatalf("expected no run, got %v", runner.ran)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}

func TestWorkerDeletesOnMissingTaskID(t *testing.T) {
	client := &fakeSQS{}
	runner := &fakeRunner{}
	msg := sqstypes.Message{
		MessageId:     aws.String("m5"),
		ReceiptHandle: aws.String("r5"),
		Body:          aws.String(`{"request_id":"req-5"}`),
	}

	handleSQSMessage(context.Background(), runner, client, "queue", msg)

	if len(runner.ran) != 0 {
		t.Fatalf("expected no run, got %v", runner.ran)
	}
	if len(client.deleted) != 1 {
		t.Fatalf("expected delete, got %d", len(client.deleted))
	}
}
