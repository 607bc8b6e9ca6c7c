package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/kasemt/hrcore/internal/models"
)

// SESLockNotifier emails the security contact when an account gets
// locked. Sends are fire-and-forget: a delivery failure is logged and
// never reaches the login path.
type SESLockNotifier struct {
	sesClient   *ses.Client
	fromAddress string
	toAddress   string
	logger      *slog.Logger
}

func NewSESLockNotifier(region, fromAddress, toAddress string, logger *slog.Logger) (*SESLockNotifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESLockNotifier{
		sesClient:   ses.NewFromConfig(cfg),
		fromAddress: fromAddress,
		toAddress:   toAddress,
		logger:      logger,
	}, nil
}

// NotifyAccountLocked sends the lockout alert
func (n *SESLockNotifier) NotifyAccountLocked(ctx context.Context, lock *models.AccountLock) {
	subject := fmt.Sprintf("Account locked: %s", lock.EmployeeID)

	textBody := fmt.Sprintf(`An account has been locked after repeated failed login attempts.

Employee ID: %s
Locked at:   %s
Locked until: %s
Reason:      %s

The lock will expire automatically, or an administrator can unlock the
account from the admin console.
`,
		lock.EmployeeID,
		lock.LockedAt.UTC().Format(time.RFC3339),
		lock.LockedUntil.UTC().Format(time.RFC3339),
		lock.Reason,
	)

	input := &ses.SendEmailInput{
		Source: aws.String(n.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{n.toAddress},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String(subject),
			},
			Body: &types.Body{
				Text: &types.Content{
					Data: aws.String(textBody),
				},
			},
		},
	}

	result, err := n.sesClient.SendEmail(ctx, input)
	if err != nil {
		n.logger.Error("failed to send account lock alert via SES",
			slog.String("employee_id", lock.EmployeeID),
			slog.Any("error", err))
		return
	}

	n.logger.Info("account lock alert sent",
		slog.String("employee_id", lock.EmployeeID),
		slog.String("message_id", *result.MessageId))
}
