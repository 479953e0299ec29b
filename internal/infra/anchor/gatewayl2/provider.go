// Package gatewayl2 anchors receipt commitments through the gateway's own
// L2 anchoring endpoint.
package gatewayl2

import (
	"context"

	"notary/internal/domain"
	"notary/internal/infra/gateway"
)

type Provider struct {
	client *gateway.Client
}

func NewProvider(client *gateway.Client) *Provider {
	return &Provider{client: client}
}

func (p *Provider) ProviderName() string {
	return "gateway-l2"
}

func (p *Provider) Anchor(ctx context.Context, receiptID string) (domain.AnchorRecord, error) {
	return p.client.RequestAnchor(ctx, receiptID)
}
