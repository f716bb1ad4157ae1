package explore

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simplesconnect/simples-connect/internal/app"
	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
	"github.com/simplesconnect/simples-connect/internal/server"
	"github.com/simplesconnect/simples-connect/internal/service/matching"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "simples.explore.v1.ExploreService"

type exploreServiceServer interface {
	recordInteractionRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	listLikedYouRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	listNewLikedYouRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	countLikedYouRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*exploreServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		server.Method(ServiceName, "RecordInteraction", func(s exploreServiceServer) server.UnaryHandler { return s.recordInteractionRPC }),
		server.Method(ServiceName, "ListLikedYou", func(s exploreServiceServer) server.UnaryHandler { return s.listLikedYouRPC }),
		server.Method(ServiceName, "ListNewLikedYou", func(s exploreServiceServer) server.UnaryHandler { return s.listNewLikedYouRPC }),
		server.Method(ServiceName, "CountLikedYou", func(s exploreServiceServer) server.UnaryHandler { return s.countLikedYouRPC }),
	},
	Metadata: "simples/explore/v1/explore.proto",
}

func init() {
	server.MustDescribe(&serviceDesc)
}

// Registrar ties the Explore service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Explore service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Explore service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	service := NewExploreService(r.appCtx, matching.NewMatchingService(r.appCtx))
	s.RegisterService(&serviceDesc, service)
}

type listLikedYouRequest struct {
	PaginationToken *string `json:"pagination_token"`
}

func (s *Service) recordInteractionRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := server.Caller(ctx)
	if err != nil {
		return nil, err
	}
	var in struct {
		TargetID string `json:"target_id"`
		Kind     string `json:"kind"`
	}
	if err := server.FromStruct(req, &in); err != nil {
		return nil, svcErr.Map(svcErr.InvalidArgument("malformed request"))
	}
	res, err := s.RecordInteraction(ctx, caller.UserID, in.TargetID, in.Kind)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return server.ToStruct(res)
}

func (s *Service) listLikedYouRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.likersRPC(ctx, req, s.ListLikedYou)
}

func (s *Service) listNewLikedYouRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.likersRPC(ctx, req, s.ListNewLikedYou)
}

func (s *Service) likersRPC(
	ctx context.Context,
	req *structpb.Struct,
	list func(context.Context, string, *string) (*LikersPage, error),
) (*structpb.Struct, error) {
	caller, err := server.Caller(ctx)
	if err != nil {
		return nil, err
	}
	var in listLikedYouRequest
	if err := server.FromStruct(req, &in); err != nil {
		return nil, svcErr.Map(svcErr.InvalidArgument("malformed request"))
	}
	page, err := list(ctx, caller.UserID, in.PaginationToken)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return server.ToStruct(page)
}

func (s *Service) countLikedYouRPC(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	caller, err := server.Caller(ctx)
	if err != nil {
		return nil, err
	}
	n, err := s.CountLikedYou(ctx, caller.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return server.ToStruct(map[string]any{"count": n})
}
