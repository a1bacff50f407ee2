package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/skybox/internal/common"
	"github.com/dmitrijs2005/skybox/internal/server/services"
)

// toStatus maps service errors onto gRPC status codes. Unexpected errors are
// logged and reported without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, common.ErrorForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrorInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrInsufficientCredits):
		return status.Error(codes.FailedPrecondition, common.ErrInsufficientCredits.Error())
	case errors.Is(err, common.ErrQuotaExceeded):
		return status.Error(codes.ResourceExhausted, common.ErrQuotaExceeded.Error())
	case errors.Is(err, common.ErrVersionConflict):
		return status.Error(codes.Aborted, "concurrent update, retry")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, common.ErrExternalStore):
		s.logger.Error(ctx, "external store failure", "error", err)
		return status.Error(codes.Unavailable, "storage unavailable")
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) Ping(ctx context.Context, req *PingRequest) (*PingResponse, error) {

	return &PingResponse{Status: "OK"}, nil

}

func (s *GRPCServer) Upload(ctx context.Context, req *UploadRequest) (*FileResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	file, err := s.files.Upload(ctx, userID, req.Data, req.DisplayName, req.ContentType, req.SizeBytes)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &FileResponse{File: file}, nil
}

// UploadFiles fails as a whole on error; files stored before the failure
// remain and show up in ListFiles.
func (s *GRPCServer) UploadFiles(ctx context.Context, req *UploadFilesRequest) (*UploadFilesResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	inputs := make([]services.UploadInput, 0, len(req.Files))
	for _, f := range req.Files {
		inputs = append(inputs, services.UploadInput{
			Data:        f.Data,
			DisplayName: f.DisplayName,
			ContentType: f.ContentType,
			SizeBytes:   f.SizeBytes,
		})
	}

	files, ledger, err := s.files.UploadFiles(ctx, userID, inputs)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &UploadFilesResponse{Files: files, CreditsRemaining: ledger.CreditsRemaining}, nil
}

func (s *GRPCServer) Download(ctx context.Context, req *FileRequest) (*DownloadResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	file, data, err := s.files.Download(ctx, userID, req.FileID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &DownloadResponse{File: file, Data: data}, nil
}

func (s *GRPCServer) Delete(ctx context.Context, req *FileRequest) (*DeleteResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.files.Delete(ctx, userID, req.FileID); err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &DeleteResponse{}, nil
}

func (s *GRPCServer) TogglePublic(ctx context.Context, req *FileRequest) (*FileResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	file, err := s.files.TogglePublic(ctx, userID, req.FileID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &FileResponse{File: file}, nil
}

func (s *GRPCServer) ListFiles(ctx context.Context, req *ListFilesRequest) (*ListFilesResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	files, err := s.files.ListFiles(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &ListFilesResponse{Files: files}, nil
}

func (s *GRPCServer) GetDownloadURL(ctx context.Context, req *FileRequest) (*DownloadURLResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	url, err := s.files.GetDownloadURL(ctx, userID, req.FileID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &DownloadURLResponse{URL: url}, nil
}

func (s *GRPCServer) GetCredits(ctx context.Context, req *CreditsRequest) (*CreditsResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	ledger, err := s.files.GetCredits(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &CreditsResponse{Ledger: ledger}, nil
}

func (s *GRPCServer) CheckUsage(ctx context.Context, req *UsageRequest) (*UsageResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	report, err := s.files.CheckUsage(ctx, userID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return &UsageResponse{Report: report, Consistent: report.Consistent()}, nil
}
