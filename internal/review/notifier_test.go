package review

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campaign-writer/internal/common/config"
	"campaign-writer/internal/common/logger"
	"campaign-writer/internal/models"
)

type mockSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (m *mockSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.inputs = append(m.inputs, in)
	return &ses.SendEmailOutput{}, m.err
}

type mockSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (m *mockSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, in)
	return &sns.PublishOutput{}, m.err
}

func notificationConfig() config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.SNS.Enabled = true
	cfg.SNS.TopicARN = "arn:aws:sns:us-east-1:123456789012:reviews"
	cfg.SES.Enabled = true
	cfg.SES.FromEmail = "noreply@example.com"
	cfg.SES.ReviewerEmails = []string{"editor@example.com"}
	cfg.ReviewBaseURL = "https://app.example.com/"
	return cfg
}

func pendingReview() *models.PendingReview {
	return &models.PendingReview{
		RunID:    "run-42",
		TenantID: "t-1",
		Request: models.GenerationRequest{
			TaskKind: models.TaskSubjectLine,
			Brand:    models.BrandGuidelines{CompanyName: "Acme"},
		},
		Result: &models.GenerationResult{
			RunID: "run-42",
			Variants: []models.Variant{
				models.NewVariant("Spring <deals>", models.FormatText),
				models.NewVariant("Fresh picks", models.FormatText),
			},
		},
		ExpiresAt: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNotifyPending_BothChannels(t *testing.T) {
	sesMock, snsMock := &mockSES{}, &mockSNS{}
	n := NewNotifier(notificationConfig(), sesMock, snsMock, logger.NewTestLogger(t))

	require.NoError(t, n.NotifyPending(context.Background(), pendingReview()))

	require.Len(t, snsMock.inputs, 1)
	assert.Equal(t, "arn:aws:sns:us-east-1:123456789012:reviews", *snsMock.inputs[0].TopicArn)
	var event Event
	require.NoError(t, json.Unmarshal([]byte(*snsMock.inputs[0].Message), &event))
	assert.Equal(t, "run-42", event.RunID)
	assert.Equal(t, []string{"Spring <deals>", "Fresh picks"}, event.Variants)
	assert.Equal(t, "https://app.example.com/ai/reviews/run-42", event.ReviewURL)
	assert.Equal(t, "subject_line", *snsMock.inputs[0].MessageAttributes["task_kind"].StringValue)

	require.Len(t, sesMock.inputs, 1)
	in := sesMock.inputs[0]
	assert.Equal(t, []string{"editor@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Review requested: subject_line (2 variants)", *in.Message.Subject.Data)
	assert.Contains(t, *in.Message.Body.Text.Data, "for Acme")
	assert.Contains(t, *in.Message.Body.Text.Data, "1. Spring <deals>")
	assert.Contains(t, *in.Message.Body.Html.Data, "Spring &lt;deals&gt;")
	assert.Equal(t, "noreply@example.com", *in.Source)
}

func TestNotifyPending_ReportsFailureButTriesBoth(t *testing.T) {
	sesMock := &mockSES{}
	snsMock := &mockSNS{err: stderrors.New("throttled")}
	n := NewNotifier(notificationConfig(), sesMock, snsMock, logger.NewNoOpLogger())

	err := n.NotifyPending(context.Background(), pendingReview())

	assert.ErrorIs(t, err, ErrNotificationSendFailed)
	assert.Len(t, sesMock.inputs, 1)
}

func TestNotifyPending_DisabledChannels(t *testing.T) {
	n := NewNotifier(config.NotificationConfig{}, nil, nil, logger.NewNoOpLogger())
	assert.NoError(t, n.NotifyPending(context.Background(), pendingReview()))
}

func TestRenderTemplate(t *testing.T) {
	out := renderTemplate("Hi {{name}}, {{missing}}done", map[string]string{"name": "Ann"})
	assert.Equal(t, "Hi Ann, done", out)
}
