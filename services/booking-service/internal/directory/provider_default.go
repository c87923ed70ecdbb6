//go:build !protogen

package directory

import (
	"context"

	"github.com/autodiag-garage/platform/services/booking-service/internal/model"
)

// Provider serves synchronous directory reads when the gRPC client is
// compiled in. Default builds return a nil provider and callers fall back
// to the local cache maintained by the directory event consumer.
type Provider interface {
	GetServiceType(ctx context.Context, id string) (model.ServiceType, error)
	ListAvailableTechnicians(ctx context.Context) ([]model.Technician, error)
}

func NewProvider(_ string) (Provider, error) {
	return nil, nil
}
