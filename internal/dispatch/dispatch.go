// Package dispatch forwards completed audit reports to a queue for
// downstream consumers (dashboards, alerting).
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/alphagov/csw-engine/internal/models"
	"github.com/alphagov/csw-engine/internal/providers/aws/common"
)

// ErrNoMessageID marks a send the queue answered without assigning a message
// ID. The message cannot be assumed delivered.
var ErrNoMessageID = errors.New("queue returned no message ID")

// Dispatcher sends one message per audit report to an SQS queue. The body is
// the report JSON; consumers key on audit_id and account_id inside it.
type Dispatcher struct {
	client   common.SQSClient
	queueURL string
}

// NewDispatcher returns a Dispatcher targeting queueURL.
func NewDispatcher(client common.SQSClient, queueURL string) (*Dispatcher, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("dispatcher requires a queue URL")
	}
	return &Dispatcher{client: client, queueURL: queueURL}, nil
}

// Send serializes the report and enqueues it. A response without a message
// ID means the queue did not accept the message and is a hard error.
func (d *Dispatcher) Send(ctx context.Context, report *models.AuditReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report %q: %w", report.AuditID, err)
	}

	out, err := d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send audit %q to %q: %w", report.AuditID, d.queueURL, err)
	}
	if out.MessageId == nil || *out.MessageId == "" {
		return fmt.Errorf("send audit %q to %q: %w", report.AuditID, d.queueURL, ErrNoMessageID)
	}
	return nil
}
