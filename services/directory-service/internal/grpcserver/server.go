//go:build protogen

package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/autodiag-garage/platform/libs/db"
	directoryv1 "github.com/autodiag-garage/platform/protos/gen/directory/v1"
	"github.com/autodiag-garage/platform/services/directory-service/internal/storage"
)

type server struct {
	directoryv1.UnimplementedDirectoryServiceServer
	pool *db.Pool
	repo *storage.Repository
}

func Register(grpcServer *grpc.Server, pool *db.Pool, repo *storage.Repository) {
	directoryv1.RegisterDirectoryServiceServer(grpcServer, &server{pool: pool, repo: repo})
}

func (s *server) GetServiceType(ctx context.Context, req *directoryv1.ServiceTypeRequest) (*directoryv1.ServiceTypeResponse, error) {
	if req.GetServiceId() == "" {
		return nil, status.Error(codes.InvalidArgument, "service_id is required")
	}
	st, err := s.repo.GetServiceType(ctx, req.GetServiceId())
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, status.Error(codes.NotFound, "service type not found")
		}
		return nil, status.Error(codes.Internal, "failed to load service type")
	}
	return &directoryv1.ServiceTypeResponse{
		ServiceId:       st.ID,
		Name:            st.Name,
		Description:     st.Description,
		DurationMinutes: int32(st.DurationMinutes),
		Price:           st.Price,
	}, nil
}

func (s *server) ListAvailableTechnicians(ctx context.Context, _ *directoryv1.ListAvailableTechniciansRequest) (*directoryv1.ListAvailableTechniciansResponse, error) {
	techs, err := s.repo.ListTechnicians(ctx, true, 500)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to list technicians")
	}
	resp := &directoryv1.ListAvailableTechniciansResponse{}
	for _, t := range techs {
		resp.Technicians = append(resp.Technicians, &directoryv1.Technician{
			TechnicianId: t.ID,
			FirstName:    t.FirstName,
			LastName:     t.LastName,
			Email:        t.Email,
			Phone:        t.Phone,
			Specialty:    t.Specialty,
			Available:    t.Available,
		})
	}
	return resp, nil
}
