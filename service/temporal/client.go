package temporal

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
)

// Client starts reconciliation workflows. The server holds one so a timed-out
// submission is handed off for asynchronous settlement instead of being left
// in limbo.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient connects to Temporal and returns a workflow-starting client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// ScheduleReconciliation starts a reconciliation workflow for a submission
// with an unknown outcome. The workflow ID is derived from the signature, so
// repeated scheduling of the same submission is a no-op.
func (c *Client) ScheduleReconciliation(ctx context.Context, input ReconcileSubmissionInput) error {
	workflowID := fmt.Sprintf("reconcile-entry-%s", input.Signature)

	_, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: c.taskQueue,
	}, ReconcileSubmissionWorkflow, input)
	if err != nil {
		return fmt.Errorf("start reconciliation workflow: %w", err)
	}

	c.logger.Info("reconciliation workflow started",
		"workflow_id", workflowID,
		"signature", input.Signature,
	)
	return nil
}

// Close closes the underlying Temporal connection.
func (c *Client) Close() {
	c.client.Close()
}
