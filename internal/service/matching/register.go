package matching

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simplesconnect/simples-connect/internal/app"
	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
	"github.com/simplesconnect/simples-connect/internal/server"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "simples.matching.v1.MatchService"

type matchServiceServer interface {
	listMatchesRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	unmatchRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*matchServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		server.Method(ServiceName, "ListMatches", func(s matchServiceServer) server.UnaryHandler { return s.listMatchesRPC }),
		server.Method(ServiceName, "Unmatch", func(s matchServiceServer) server.UnaryHandler { return s.unmatchRPC }),
	},
	Metadata: "simples/matching/v1/matching.proto",
}

func init() {
	server.MustDescribe(&serviceDesc)
}

// Registrar ties the Match service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the Match service
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the Match service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&serviceDesc, NewMatchingService(r.appCtx))
}

func (s *Service) listMatchesRPC(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	caller, err := server.Caller(ctx)
	if err != nil {
		return nil, err
	}
	views, err := s.ListMatches(ctx, caller.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return server.ToStruct(map[string]any{"matches": views})
}

func (s *Service) unmatchRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := server.Caller(ctx)
	if err != nil {
		return nil, err
	}
	var in struct {
		MatchID string `json:"match_id"`
	}
	if err := server.FromStruct(req, &in); err != nil {
		return nil, svcErr.Map(svcErr.InvalidArgument("malformed request"))
	}
	m, err := s.Unmatch(ctx, in.MatchID, caller.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return server.ToStruct(map[string]any{"match": m})
}
