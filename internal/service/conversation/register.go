package conversation

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simplesconnect/simples-connect/internal/app"
	svcErr "github.com/simplesconnect/simples-connect/internal/errors"
	"github.com/simplesconnect/simples-connect/internal/server"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "simples.conversation.v1.ConversationService"

type conversationServiceServer interface {
	listConversationsRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	listMessagesRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	sendMessageRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	markReadRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*conversationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		server.Method(ServiceName, "ListConversations", func(s conversationServiceServer) server.UnaryHandler { return s.listConversationsRPC }),
		server.Method(ServiceName, "ListMessages", func(s conversationServiceServer) server.UnaryHandler { return s.listMessagesRPC }),
		server.Method(ServiceName, "SendMessage", func(s conversationServiceServer) server.UnaryHandler { return s.sendMessageRPC }),
		server.Method(ServiceName, "MarkRead", func(s conversationServiceServer) server.UnaryHandler { return s.markReadRPC }),
	},
	Metadata: "simples/conversation/v1/conversation.proto",
}

func init() {
	server.MustDescribe(&serviceDesc)
}

// Registrar ties the Conversation service into the gRPC server
type Registrar struct {
	appCtx *app.AppContext
	opts   []Option
}

// NewRegistrar creates a new Registrar for the Conversation service
func NewRegistrar(appCtx *app.AppContext, opts ...Option) *Registrar {
	return &Registrar{appCtx: appCtx, opts: opts}
}

// Register attaches the Conversation service implementation to the gRPC server
func (r *Registrar) Register(s *grpc.Server) {
	s.RegisterService(&serviceDesc, NewConversationService(r.appCtx, r.opts...))
}

type matchRequest struct {
	MatchID string `json:"match_id"`
	Content string `json:"content"`
	Kind    string `json:"kind"`
}

func decodeMatchRequest(req *structpb.Struct) (matchRequest, error) {
	var in matchRequest
	if err := server.FromStruct(req, &in); err != nil {
		return in, svcErr.Map(svcErr.InvalidArgument("malformed request"))
	}
	return in, nil
}

func (s *Service) listConversationsRPC(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	caller, err := server.Caller(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.ListConversations(ctx, caller.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return server.ToStruct(map[string]any{"conversations": list})
}

func (s *Service) listMessagesRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := server.Caller(ctx)
	if err != nil {
		return nil, err
	}
	in, err := decodeMatchRequest(req)
	if err != nil {
		return nil, err
	}
	msgs, err := s.ListMessages(ctx, in.MatchID, caller.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return server.ToStruct(map[string]any{"messages": msgs})
}

func (s *Service) sendMessageRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := server.Caller(ctx)
	if err != nil {
		return nil, err
	}
	in, err := decodeMatchRequest(req)
	if err != nil {
		return nil, err
	}
	msg, err := s.SendMessage(ctx, in.MatchID, caller.UserID, in.Content, in.Kind)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return server.ToStruct(map[string]any{"message": msg})
}

func (s *Service) markReadRPC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	caller, err := server.Caller(ctx)
	if err != nil {
		return nil, err
	}
	in, err := decodeMatchRequest(req)
	if err != nil {
		return nil, err
	}
	n, err := s.MarkRead(ctx, in.MatchID, caller.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return server.ToStruct(map[string]any{"count": n})
}
