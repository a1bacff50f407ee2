// Package grpc exposes the file service over gRPC with a JSON codec.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/skybox/internal/logging"
	"github.com/dmitrijs2005/skybox/internal/server/auth"
	"github.com/dmitrijs2005/skybox/internal/server/models"
	"github.com/dmitrijs2005/skybox/internal/server/services"
)

// FileService is the business logic behind the gRPC handlers.
type FileService interface {
	Upload(ctx context.Context, ownerID string, data []byte, displayName, contentType string, sizeBytes int64) (*models.FileRecord, error)
	UploadFiles(ctx context.Context, ownerID string, inputs []services.UploadInput) ([]*models.FileRecord, *models.CreditLedger, error)
	Download(ctx context.Context, requesterID, fileID string) (*models.FileRecord, []byte, error)
	Delete(ctx context.Context, requesterID, fileID string) error
	TogglePublic(ctx context.Context, requesterID, fileID string) (*models.FileRecord, error)
	ListFiles(ctx context.Context, ownerID string) ([]*models.FileRecord, error)
	GetDownloadURL(ctx context.Context, requesterID, fileID string) (string, error)
	GetCredits(ctx context.Context, ownerID string) (*models.CreditLedger, error)
	CheckUsage(ctx context.Context, ownerID string) (*models.UsageReport, error)
}

type GRPCServer struct {
	address        string
	files          FileService
	verifier       auth.Verifier
	logger         logging.Logger
	maxMessageSize int
}

func NewGRPCServer(a string, l logging.Logger, fs FileService, v auth.Verifier, maxMessageSize int) *GRPCServer {
	return &GRPCServer{
		address:        a,
		logger:         l.With("module", "grpc_server"),
		files:          fs,
		verifier:       v,
		maxMessageSize: maxMessageSize,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.ForceServerCodec(JSONCodec{}),
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
	}
	if s.maxMessageSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(s.maxMessageSize), grpc.MaxSendMsgSize(s.maxMessageSize))
	}
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&fileServiceDesc, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
