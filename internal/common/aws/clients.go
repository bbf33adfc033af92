// internal/common/aws/clients.go
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Clients holds the AWS clients used for reviewer notifications.
// A client is nil when its channel is disabled.
type Clients struct {
	SES *ses.Client
	SNS *sns.Client
}

// NewClients loads the default credential chain for region and builds the
// requested clients.
func NewClients(ctx context.Context, region string, withSES, withSNS bool) (*Clients, error) {
	out := &Clients{}
	if !withSES && !withSNS {
		return out, nil
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if withSES {
		out.SES = ses.NewFromConfig(cfg)
	}
	if withSNS {
		out.SNS = sns.NewFromConfig(cfg)
	}
	return out, nil
}
