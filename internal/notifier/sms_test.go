package notifier

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type fakePublisher struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("m-1")}, nil
}

func TestSMSNotifierPublish(t *testing.T) {
	pub := &fakePublisher{}
	n := &SMSNotifier{
		config: SMSConfig{Region: "eu-central-1", SenderID: "PulseBoard"},
		client: pub,
	}

	if err := n.SendSMS(context.Background(), "+420123456789", "Alert cpu was triggered!"); err != nil {
		t.Fatalf("send sms: %v", err)
	}

	if len(pub.inputs) != 1 {
		t.Fatalf("publish calls = %d, want 1", len(pub.inputs))
	}
	in := pub.inputs[0]
	if aws.ToString(in.PhoneNumber) != "+420123456789" {
		t.Errorf("phone = %v", aws.ToString(in.PhoneNumber))
	}
	if aws.ToString(in.Message) != "Alert cpu was triggered!" {
		t.Errorf("message = %v", aws.ToString(in.Message))
	}
	if got := aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue); got != "Transactional" {
		t.Errorf("sms type = %v", got)
	}
	if got := aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue); got != "PulseBoard" {
		t.Errorf("sender id = %v", got)
	}
}

func TestSMSNotifierPublishError(t *testing.T) {
	pub := &fakePublisher{err: fmt.Errorf("throttled")}
	n := &SMSNotifier{config: SMSConfig{Region: "eu-central-1"}, client: pub}

	if err := n.SendSMS(context.Background(), "+420123456789", "x"); err == nil {
		t.Fatal("expected publish error")
	}
}

func TestSMSConfigValidate(t *testing.T) {
	valid := SMSConfig{Region: "eu-central-1"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config: %v", err)
	}
	invalid := SMSConfig{}
	if err := invalid.Validate(); err == nil {
		t.Error("missing region should fail validation")
	}
}
