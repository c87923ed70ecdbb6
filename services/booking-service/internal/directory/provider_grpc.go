//go:build protogen

package directory

import (
	"context"
	"time"

	"github.com/autodiag-garage/platform/libs/grpcx"
	directoryv1 "github.com/autodiag-garage/platform/protos/gen/directory/v1"
	"github.com/autodiag-garage/platform/services/booking-service/internal/model"
)

type Provider interface {
	GetServiceType(ctx context.Context, id string) (model.ServiceType, error)
	ListAvailableTechnicians(ctx context.Context) ([]model.Technician, error)
}

type grpcProvider struct {
	client directoryv1.DirectoryServiceClient
}

func NewProvider(addr string) (Provider, error) {
	if addr == "" {
		return nil, nil
	}
	conn, err := grpcx.Dial(context.Background(), addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &grpcProvider{client: directoryv1.NewDirectoryServiceClient(conn)}, nil
}

func (p *grpcProvider) GetServiceType(ctx context.Context, id string) (model.ServiceType, error) {
	resp, err := p.client.GetServiceType(ctx, &directoryv1.ServiceTypeRequest{ServiceId: id})
	if err != nil {
		return model.ServiceType{}, err
	}
	return model.ServiceType{
		ID:              resp.GetServiceId(),
		Name:            resp.GetName(),
		Description:     resp.GetDescription(),
		DurationMinutes: int(resp.GetDurationMinutes()),
		Price:           resp.GetPrice(),
	}, nil
}

func (p *grpcProvider) ListAvailableTechnicians(ctx context.Context) ([]model.Technician, error) {
	resp, err := p.client.ListAvailableTechnicians(ctx, &directoryv1.ListAvailableTechniciansRequest{})
	if err != nil {
		return nil, err
	}
	techs := make([]model.Technician, 0, len(resp.GetTechnicians()))
	for _, t := range resp.GetTechnicians() {
		techs = append(techs, model.Technician{
			ID:        t.GetTechnicianId(),
			FirstName: t.GetFirstName(),
			LastName:  t.GetLastName(),
			Email:     t.GetEmail(),
			Phone:     t.GetPhone(),
			Specialty: t.GetSpecialty(),
			Available: t.GetAvailable(),
		})
	}
	return techs, nil
}
