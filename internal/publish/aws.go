// Where: internal/publish/aws.go
// What: Shared AWS SDK configuration for the S3 and DynamoDB clients.
// Why: Keep region and static credential handling identical for both services.
package publish

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/poruru/mdpack/internal/envutil"
)

const defaultAWSRegion = "us-east-1"

// awsRegion picks the configured region, then AWS_REGION, then the default.
func awsRegion(configured string) string {
	if configured != "" {
		return configured
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		return region
	}
	return defaultAWSRegion
}

// loadAWSConfig loads the default config chain. MDPACK_<service>_ACCESS_KEY
// and MDPACK_<service>_SECRET_KEY switch to static credentials.
func loadAWSConfig(ctx context.Context, region, service string) (aws.Config, error) {
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(awsRegion(region))}
	access := envutil.GetHostEnv(service + "_ACCESS_KEY")
	secret := envutil.GetHostEnv(service + "_SECRET_KEY")
	if access != "" && secret != "" {
		creds := credentials.NewStaticCredentialsProvider(access, secret, "")
		loadOpts = append(loadOpts, config.WithCredentialsProvider(creds))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return cfg, nil
}
