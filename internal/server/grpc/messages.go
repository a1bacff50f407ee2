package grpc

import "github.com/dmitrijs2005/skybox/internal/server/models"

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type UploadRequest struct {
	DisplayName string `json:"display_name"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	Data        []byte `json:"data"`
}

// UploadFilesRequest uploads several files at once; each needs one credit.
type UploadFilesRequest struct {
	Files []UploadRequest `json:"files"`
}

type UploadFilesResponse struct {
	Files            []*models.FileRecord `json:"files"`
	CreditsRemaining int64                `json:"credits_remaining"`
}

// FileRequest addresses one file by id.
type FileRequest struct {
	FileID string `json:"file_id"`
}

type FileResponse struct {
	File *models.FileRecord `json:"file"`
}

type DownloadResponse struct {
	File *models.FileRecord `json:"file"`
	Data []byte             `json:"data"`
}

type DeleteResponse struct{}

type ListFilesRequest struct{}

type ListFilesResponse struct {
	Files []*models.FileRecord `json:"files"`
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

type CreditsRequest struct{}

type CreditsResponse struct {
	Ledger *models.CreditLedger `json:"ledger"`
}

type UsageRequest struct{}

type UsageResponse struct {
	Report     *models.UsageReport `json:"report"`
	Consistent bool                `json:"consistent"`
}
