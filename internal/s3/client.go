package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Client wraps the AWS S3 client
type Client struct {
	s3Client *s3.Client
	config   aws.Config
}

// NewClient creates a new S3 client
func NewClient(ctx context.Context, profile, region string) (*Client, error) {
	// Load AWS config
	opts := []func(*config.LoadOptions) error{}

	if profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(profile))
	}

	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{
		s3Client: s3.NewFromConfig(cfg),
		config:   cfg,
	}, nil
}

// GetRegion returns the configured region
func (c *Client) GetRegion() string {
	return c.config.Region
}
