package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/spliteth/spliteth/internal/logging"
)

// SNSPublisher is the part of *sns.Client used for SMS delivery.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSConfig holds AWS settings. Empty keys fall back to the default
// credential chain.
type SNSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SenderID        string
}

// NewSNSClient builds an SNS client from cfg.
func NewSNSClient(ctx context.Context, cfg SNSConfig) (*sns.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sns.NewFromConfig(awsCfg), nil
}

// SNSNotifier sends messages as transactional SMS through AWS SNS.
type SNSNotifier struct {
	client   SNSPublisher
	senderID string
	logger   *slog.Logger
}

// NewSNSNotifier wraps client.
func NewSNSNotifier(client SNSPublisher, senderID string, logger *slog.Logger) *SNSNotifier {
	return &SNSNotifier{client: client, senderID: senderID, logger: logger}
}

// Send publishes message.Body to the phone number in message.Destination.
func (n *SNSNotifier) Send(ctx context.Context, message Message) error {
	if err := message.Validate(); err != nil {
		return err
	}
	attrs := map[string]snstypes.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {DataType: aws.String("String"), StringValue: aws.String("Transactional")},
	}
	if n.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(n.senderID),
		}
	}
	out, err := n.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(message.Destination),
		Message:           aws.String(message.Body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	if n.logger != nil {
		n.logger.Info("sms sent",
			slog.String("kind", message.Kind),
			slog.String("destination", logging.MaskPhone(message.Destination)),
			slog.String("message_id", aws.ToString(out.MessageId)),
		)
	}
	return nil
}
