//go:build !protogen

package main

import (
	"context"
	"log/slog"

	"github.com/autodiag-garage/platform/libs/db"
	"github.com/autodiag-garage/platform/services/directory-service/internal/storage"
)

func startGrpcServer(_ context.Context, _ *slog.Logger, _ *db.Pool, _ *storage.Repository) error {
	return nil
}
