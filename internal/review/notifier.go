// Package review notifies reviewers when a generation result is held for
// human approval.
package review

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"campaign-writer/internal/common/config"
	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/models"
)

var ErrNotificationSendFailed = stderrors.New("NOTIFICATION_SEND_FAILED")

// SESService is the subset of the SES client used here.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSService is the subset of the SNS client used here.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

const (
	subjectTemplate = "Review requested: {{taskKind}} ({{variantCount}} variants)"
	textTemplate    = "A generated {{taskKind}} for {{company}} is waiting for approval.\n\nRun: {{runId}}\nReview: {{reviewUrl}}\n\n{{preview}}"
)

// Event is the SNS message body published for each pending run.
type Event struct {
	Type      string   `json:"type"`
	RunID     string   `json:"run_id"`
	TenantID  string   `json:"tenant_id,omitempty"`
	TaskKind  string   `json:"task_kind"`
	Variants  []string `json:"variants"`
	ReviewURL string   `json:"review_url,omitempty"`
	ExpiresAt string   `json:"expires_at"`
}

type Notifier struct {
	ses       SESService
	sns       SNSService
	topicARN  string
	from      string
	reviewers []string
	baseURL   string
	log       logger.Logger
}

// NewNotifier builds a notifier. Either client may be nil to disable that channel.
func NewNotifier(cfg config.NotificationConfig, sesClient SESService, snsClient SNSService, log logger.Logger) *Notifier {
	return &Notifier{
		ses:       sesClient,
		sns:       snsClient,
		topicARN:  cfg.SNS.TopicARN,
		from:      cfg.SES.FromEmail,
		reviewers: cfg.SES.ReviewerEmails,
		baseURL:   strings.TrimRight(cfg.ReviewBaseURL, "/"),
		log:       logger.Component(log, "review-notifier"),
	}
}

// NotifyPending publishes an SNS event and emails a preview to reviewers.
// Both channels are attempted; the first failure is returned.
func (n *Notifier) NotifyPending(ctx context.Context, p *models.PendingReview) error {
	data := n.templateData(p)
	var firstErr error

	if n.sns != nil && n.topicARN != "" {
		if err := n.publish(ctx, p, data["reviewUrl"]); err != nil {
			n.log.Error("SNS publish failed", map[string]interface{}{"runId": p.RunID, "error": err.Error()})
			firstErr = fmt.Errorf("%w: sns: %v", ErrNotificationSendFailed, err)
		}
	}

	if n.ses != nil && len(n.reviewers) > 0 {
		if err := n.email(ctx, p, data); err != nil {
			n.log.Error("SES send failed", map[string]interface{}{"runId": p.RunID, "error": err.Error()})
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: ses: %v", ErrNotificationSendFailed, err)
			}
		}
	}

	if firstErr == nil {
		n.log.Info("Reviewers notified", map[string]interface{}{"runId": p.RunID})
	}
	return firstErr
}

func (n *Notifier) templateData(p *models.PendingReview) map[string]string {
	data := map[string]string{
		"runId":        p.RunID,
		"taskKind":     string(p.Request.TaskKind),
		"company":      p.Request.Brand.CompanyName,
		"variantCount": "0",
		"reviewUrl":    "",
		"preview":      "",
	}
	if data["company"] == "" {
		data["company"] = "your brand"
	}
	if n.baseURL != "" {
		data["reviewUrl"] = n.baseURL + "/ai/reviews/" + p.RunID
	}
	if p.Result != nil {
		data["variantCount"] = fmt.Sprintf("%d", len(p.Result.Variants))
		var b strings.Builder
		for i, v := range p.Result.Variants {
			fmt.Fprintf(&b, "%d. %s\n", i+1, v.Text)
		}
		data["preview"] = strings.TrimSpace(b.String())
	}
	return data
}

func (n *Notifier) publish(ctx context.Context, p *models.PendingReview, reviewURL string) error {
	event := Event{
		Type:      "generation.pending_review",
		RunID:     p.RunID,
		TenantID:  p.TenantID,
		TaskKind:  string(p.Request.TaskKind),
		ReviewURL: reviewURL,
		ExpiresAt: p.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if p.Result != nil {
		for _, v := range p.Result.Variants {
			event.Variants = append(event.Variants, v.Text)
		}
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = n.sns.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicARN),
		Subject:  aws.String("Generation pending review"),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"task_kind": {DataType: aws.String("String"), StringValue: aws.String(event.TaskKind)},
		},
	})
	return err
}

func (n *Notifier) email(ctx context.Context, p *models.PendingReview, data map[string]string) error {
	subject := renderTemplate(subjectTemplate, data)
	text := renderTemplate(textTemplate, data)

	_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{ToAddresses: n.reviewers},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(text)},
				Html: &types.Content{Data: aws.String("<pre>" + html.EscapeString(text) + "</pre>")},
			},
		},
		Source: aws.String(n.from),
	})
	return err
}

// renderTemplate substitutes {{key}} placeholders and drops unknown ones.
func renderTemplate(tmpl string, data map[string]string) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", v)
	}
	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		result = result[:start] + result[start+end+2:]
	}
	return result
}
