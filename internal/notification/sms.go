package notification

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type SMSConfig struct {
	Region string
}

// SMSService delivers verification codes and reset tokens via AWS SNS.
type SMSService struct {
	client *sns.Client
}

func NewSMSService(ctx context.Context, cfg SMSConfig) (*SMSService, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SMSService{client: sns.NewFromConfig(awsCfg)}, nil
}

func (s *SMSService) SendVerificationSMS(ctx context.Context, to, code string) error {
	body := fmt.Sprintf("Your Stardust Classifieds verification code is: %s. This code expires in 10 minutes.", code)
	return s.publish(ctx, to, body)
}

func (s *SMSService) SendPasswordResetSMS(ctx context.Context, to, token string) error {
	body := fmt.Sprintf("Your Stardust Classifieds password reset code is: %s. This code expires in 1 hour.", token)
	return s.publish(ctx, to, body)
}

func (s *SMSService) publish(ctx context.Context, to, message string) error {
	_, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: &to,
		Message:     &message,
	})
	return err
}
