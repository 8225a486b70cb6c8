package domain

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"livemenu/internal/models"
)

// MenuStore persists the live menu and its archives.
type MenuStore interface {
	LoadSnapshot(ctx context.Context) (models.Snapshot, error)
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
	CreateArchive(ctx context.Context, snap models.Snapshot, note string) (models.ArchiveInfo, error)
	ListArchives(ctx context.Context) ([]models.ArchiveInfo, error)
	GetArchive(ctx context.Context, id string) (*models.Archive, error)
	Ping(ctx context.Context) error
	Close() error
}

// StateRepository caches the menu snapshot and keeps export job state.
// GetSnapshot and GetJob return nil, nil on a miss.
type StateRepository interface {
	GetSnapshot(ctx context.Context) (*models.Snapshot, error)
	SetSnapshot(ctx context.Context, snap models.Snapshot) error
	ClearSnapshot(ctx context.Context) error
	GetJob(ctx context.Context, id string) (*models.ExportJob, error)
	SaveJob(ctx context.Context, job *models.ExportJob) error
	ListJobs(ctx context.Context, limit int) ([]*models.ExportJob, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// PriceListWriter mirrors the flat price list to an external spreadsheet.
type PriceListWriter interface {
	ReplacePriceList(ctx context.Context, snap models.Snapshot) error
}

// ExportQueue schedules export jobs for the background worker.
type ExportQueue interface {
	Enqueue(ctx context.Context, job *models.ExportJob) error
}
