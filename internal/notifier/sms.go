package notifier

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SMSConfig holds AWS SNS configuration for SMS delivery.
type SMSConfig struct {
	Region          string // AWS region (required)
	AccessKeyID     string // Static credentials (optional, falls back to the default chain)
	SecretAccessKey string
	SenderID        string // Displayed sender id where carriers support it (optional)
}

// Validate validates the SMS configuration.
func (c *SMSConfig) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("AWS region is required")
	}
	return nil
}

// snsAPI is the subset of the SNS client the notifier uses.
type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSNotifier sends SMS messages through AWS SNS.
type SMSNotifier struct {
	config SMSConfig
	client snsAPI
}

// NewSMSNotifier creates a new SMS notifier backed by AWS SNS.
func NewSMSNotifier(ctx context.Context, config SMSConfig) (*SMSNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sms config: %w", err)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(config.Region),
	}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			staticCredentials{id: config.AccessKeyID, secret: config.SecretAccessKey}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SMSNotifier{
		config: config,
		client: sns.NewFromConfig(awsCfg),
	}, nil
}

// SendSMS publishes one message to a phone number.
func (s *SMSNotifier) SendSMS(ctx context.Context, phone, message string) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}
	if s.config.SenderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.config.SenderID),
		}
	}

	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

type staticCredentials struct {
	id, secret string
}

func (c staticCredentials) Retrieve(ctx context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     c.id,
		SecretAccessKey: c.secret,
		Source:          "pulseboard static config",
	}, nil
}
