package service

import (
	"context"

	"github.com/pkg/errors"
	"github.com/txix-open/isp-kit/log"
	"paygate-service/domain"
)

type BillingRepo interface {
	ResolveSession(ctx context.Context, req domain.ResolveSessionRequest) (*domain.ResolveSessionResponse, error)
	Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResponse, error)
}

type Billing struct {
	repo   BillingRepo
	logger log.Logger
}

func NewBilling(repo BillingRepo, logger log.Logger) Billing {
	return Billing{
		repo:   repo,
		logger: logger,
	}
}

func (s Billing) ResolveSession(ctx context.Context, req domain.ResolveSessionRequest) (*domain.ResolveSessionResponse, error) {
	resp, err := s.repo.ResolveSession(ctx, req)
	if err != nil {
		return nil, errors.WithMessage(err, "billing repo resolve session")
	}
	return resp, nil
}

// Charge debits the caller. A failed or declined charge never blocks
// delivering already-computed content, it is logged and swallowed.
func (s Billing) Charge(ctx context.Context, caller *domain.Caller, amountMinorUnits int64) {
	resp, err := s.repo.Charge(ctx, domain.ChargeRequest{
		CallerId:         caller.Id,
		AmountMinorUnits: amountMinorUnits,
		Immediate:        true,
	})
	if err != nil {
		s.logger.Error(ctx, errors.WithMessagef(err, "charge caller '%s'", caller.Id))
		return
	}
	if !resp.Charged {
		s.logger.Error(ctx, errors.Errorf("charge declined for caller '%s', amount %d", caller.Id, amountMinorUnits))
	}
}
