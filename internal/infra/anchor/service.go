// Package anchor requests the external anchoring side effect for a
// verified receipt. Anchoring is additive and best-effort: failures and
// timeouts are recorded as attempts and surfaced as warnings, never as
// pipeline errors.
package anchor

import (
	"context"
	"errors"
	"time"

	"notary/internal/domain"
)

type Provider interface {
	ProviderName() string
	Anchor(ctx context.Context, receiptID string) (domain.AnchorRecord, error)
}

type Service struct {
	provider Provider
	timeout  time.Duration
	attempts domain.AnchorAttemptRepository
}

func NewService(provider Provider, timeout time.Duration, attempts domain.AnchorAttemptRepository) *Service {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Service{provider: provider, timeout: timeout, attempts: attempts}
}

// RequestAnchor runs one anchoring attempt for the receipt. The returned
// record is nil unless the attempt succeeded; the attempt itself always
// describes what happened.
func (s *Service) RequestAnchor(ctx context.Context, receiptID, payloadHash string) (*domain.AnchorRecord, domain.AnchorAttempt) {
	if s == nil || s.provider == nil {
		attempt := domain.AnchorAttempt{
			ReceiptID:   receiptID,
			Provider:    "anchor",
			Status:      domain.AnchorStatusSkipped,
			PayloadHash: payloadHash,
			CreatedAt:   time.Now().UTC(),
		}
		return nil, s.persistAttempt(ctx, attempt)
	}

	providerCtx, cancel := context.WithTimeout(ctx, s.timeout)
	record, err := s.provider.Anchor(providerCtx, receiptID)
	cancel()

	attempt := domain.AnchorAttempt{
		ReceiptID:   receiptID,
		Provider:    s.provider.ProviderName(),
		Status:      domain.AnchorStatusAnchored,
		PayloadHash: payloadHash,
		CreatedAt:   time.Now().UTC(),
	}
	if err != nil {
		attempt.Status = domain.AnchorStatusFailed
		attempt.ErrorCode = errorToCode(providerCtx, err)
		return nil, s.persistAttempt(ctx, attempt)
	}
	attempt = s.persistAttempt(ctx, attempt)
	if attempt.Status != domain.AnchorStatusAnchored {
		return nil, attempt
	}
	return &record, attempt
}

func (s *Service) persistAttempt(ctx context.Context, attempt domain.AnchorAttempt) domain.AnchorAttempt {
	if s == nil || s.attempts == nil {
		return attempt
	}
	if err := s.attempts.Append(ctx, attempt); err != nil {
		attempt.Status = domain.AnchorStatusFailed
		attempt.ErrorCode = domain.AnchorErrorPersistence
	}
	return attempt
}

func errorToCode(ctx context.Context, err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.AnchorErrorTimeout
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return domain.AnchorErrorNetwork
	default:
		return domain.AnchorErrorProviderError
	}
}
