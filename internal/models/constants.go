package models

import "time"

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobRetrying  = "retrying"
	JobSucceeded = "succeeded"
	JobPartial   = "partial"
	JobFailed    = "failed"
)

const (
	// DefaultSnapshotTTL время жизни кэша меню в Redis
	DefaultSnapshotTTL = 24 * time.Hour
	// DefaultJobTTL время хранения статуса экспорта
	DefaultJobTTL = 72 * time.Hour
)

const (
	NoteAutoArchiveReset   = "Auto-archive before reset"
	NoteAutoArchiveRestore = "Auto-archive before restore"
	NoteManualArchive      = "Manual archive"
)
