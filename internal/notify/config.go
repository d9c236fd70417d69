package notify

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/ignite/dispatch-engine/internal/config"
	"github.com/ignite/dispatch-engine/internal/pkg/httpretry"
)

// FromConfig builds the notifier selected by cfg. It returns nil when
// notifications are off. HTTP payloads are sent once unless
// cfg.MaxRetries is set.
func FromConfig(ctx context.Context, cfg config.NotifyConfig) (*Async, error) {
	switch cfg.Mode {
	case "", config.NotifyNone:
		return nil, nil
	case config.NotifyHTTP:
		var client httpretry.Doer
		if cfg.MaxRetries > 0 {
			client = httpretry.New(nil, httpretry.Policy{MaxRetries: cfg.MaxRetries})
		}
		return NewAsync(NewHTTPTarget(cfg.URL, client), "http", cfg.Timeout()), nil
	case config.NotifySQS:
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.SQSRegion)}
		if cfg.AWSProfile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		if cfg.AWSAccessKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, "")))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("loading AWS config: %w", err)
		}
		return NewAsync(NewSQSTarget(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL), "sqs", cfg.Timeout()), nil
	default:
		return nil, fmt.Errorf("unknown notify mode %q", cfg.Mode)
	}
}
