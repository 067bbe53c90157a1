package repository

import (
	"context"

	"github.com/pkg/errors"
	"github.com/txix-open/isp-kit/grpc/client"
	"paygate-service/domain"
)

const (
	resolveSessionEndpoint = "billing/session/resolve"
	chargeEndpoint         = "billing/session/charge"
)

type Billing struct {
	cli *client.Client
}

func NewBilling(cli *client.Client) Billing {
	return Billing{
		cli: cli,
	}
}

func (r Billing) ResolveSession(ctx context.Context, req domain.ResolveSessionRequest) (*domain.ResolveSessionResponse, error) {
	resp := domain.ResolveSessionResponse{}
	err := r.cli.Invoke(resolveSessionEndpoint).
		JsonRequestBody(req).
		JsonResponseBody(&resp).
		Do(ctx)
	if err != nil {
		return nil, errors.WithMessagef(err, "grpc client invoke: %s", resolveSessionEndpoint)
	}
	return &resp, nil
}

func (r Billing) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResponse, error) {
	resp := domain.ChargeResponse{}
	err := r.cli.Invoke(chargeEndpoint).
		JsonRequestBody(req).
		JsonResponseBody(&resp).
		Do(ctx)
	if err != nil {
		return nil, errors.WithMessagef(err, "grpc client invoke: %s", chargeEndpoint)
	}
	return &resp, nil
}
