package dashboard

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"example.com/bufferproxy/internal/models"
)

// BufferAPI is the subset of the Buffer client the dashboard drives.
// *bufferclient.Client satisfies it.
type BufferAPI interface {
	GetProfiles(ctx context.Context) ([]models.Profile, error)
	GetPendingUpdates(ctx context.Context, profileID string, page, count int) (*models.UpdatesList, error)
	GetSentUpdates(ctx context.Context, profileID string, page, count int) (*models.UpdatesList, error)
	CreateUpdate(ctx context.Context, opts models.CreateUpdateOptions) (*models.UpdateResponse, error)
}
