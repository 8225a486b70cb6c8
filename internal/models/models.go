package models

import "time"

// Archive is a timestamped deep copy of the menu taken before a bulk change.
type Archive struct {
	ID         string    `json:"id"`
	Note       string    `json:"note"`
	ArchivedAt time.Time `json:"archived_at"`
	Snapshot   Snapshot  `json:"snapshot"`
}

// ArchiveInfo is an archive without its snapshot, used for listings.
type ArchiveInfo struct {
	ID         string    `json:"id"`
	Note       string    `json:"note"`
	ArchivedAt time.Time `json:"archived_at"`
	Items      int       `json:"items"`
}

func (a Archive) Info() ArchiveInfo {
	return ArchiveInfo{ID: a.ID, Note: a.Note, ArchivedAt: a.ArchivedAt, Items: a.Snapshot.ItemCount()}
}

// PageProgress is the last reported state of one page of an export job.
type PageProgress struct {
	Index  int    `json:"index"`
	Number int    `json:"number"`
	Key    string `json:"key"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ArtifactRef struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Location    string `json:"location"`
	Size        int64  `json:"size"`
}

// ExportJob is an export request queued for the background worker.
type ExportJob struct {
	ID           string         `json:"id"`
	Mode         string         `json:"mode"`
	Kind         string         `json:"kind"`
	Format       string         `json:"format,omitempty"`
	Page         string         `json:"page,omitempty"`
	PromoPercent *float64       `json:"promo_percent,omitempty"`
	ArchiveID    string         `json:"archive_id,omitempty"`
	Status       string         `json:"status"`
	Attempts     int            `json:"attempts"`
	Total        int            `json:"total"`
	Pages        []PageProgress `json:"pages,omitempty"`
	Artifacts    []ArtifactRef  `json:"artifacts,omitempty"`
	Error        string         `json:"error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// RecordProgress replaces the entry for the page index or appends it.
func (j *ExportJob) RecordProgress(p PageProgress) {
	for i := range j.Pages {
		if j.Pages[i].Index == p.Index {
			j.Pages[i] = p
			return
		}
	}
	j.Pages = append(j.Pages, p)
}

func (j *ExportJob) Finished() bool {
	switch j.Status {
	case JobSucceeded, JobPartial, JobFailed:
		return true
	}
	return false
}
