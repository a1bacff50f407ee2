package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "skybox.v1.FileService"

const pingMethod = "/" + serviceName + "/Ping"

// fileServiceServer is the set of handlers registered under serviceName.
type fileServiceServer interface {
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	Upload(context.Context, *UploadRequest) (*FileResponse, error)
	UploadFiles(context.Context, *UploadFilesRequest) (*UploadFilesResponse, error)
	Download(context.Context, *FileRequest) (*DownloadResponse, error)
	Delete(context.Context, *FileRequest) (*DeleteResponse, error)
	TogglePublic(context.Context, *FileRequest) (*FileResponse, error)
	ListFiles(context.Context, *ListFilesRequest) (*ListFilesResponse, error)
	GetDownloadURL(context.Context, *FileRequest) (*DownloadURLResponse, error)
	GetCredits(context.Context, *CreditsRequest) (*CreditsResponse, error)
	CheckUsage(context.Context, *UsageRequest) (*UsageResponse, error)
}

// unary adapts a typed handler to grpc.MethodHandler.
func unary[Req, Resp any](method string, call func(fileServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + serviceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(fileServiceServer)
		if interceptor == nil {
			return call(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(s, ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var fileServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*fileServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ping", Handler: unary("Ping", fileServiceServer.Ping)},
		{MethodName: "Upload", Handler: unary("Upload", fileServiceServer.Upload)},
		{MethodName: "UploadFiles", Handler: unary("UploadFiles", fileServiceServer.UploadFiles)},
		{MethodName: "Download", Handler: unary("Download", fileServiceServer.Download)},
		{MethodName: "Delete", Handler: unary("Delete", fileServiceServer.Delete)},
		{MethodName: "TogglePublic", Handler: unary("TogglePublic", fileServiceServer.TogglePublic)},
		{MethodName: "ListFiles", Handler: unary("ListFiles", fileServiceServer.ListFiles)},
		{MethodName: "GetDownloadURL", Handler: unary("GetDownloadURL", fileServiceServer.GetDownloadURL)},
		{MethodName: "GetCredits", Handler: unary("GetCredits", fileServiceServer.GetCredits)},
		{MethodName: "CheckUsage", Handler: unary("CheckUsage", fileServiceServer.CheckUsage)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "skybox/v1/file_service",
}
