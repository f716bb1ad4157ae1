package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simplesconnect/simples-connect/internal/auth"
)

// UnaryHandler is the shape of every RPC exposed by this service: a
// google.protobuf.Struct request mapped to a Struct response.
type UnaryHandler func(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

// Method builds the descriptor for one unary RPC of service. pick selects the
// handler on the registered implementation, which must be of type S.
func Method[S any](service, name string, pick func(S) UnaryHandler) grpc.MethodDesc {
	fullMethod := "/" + service + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			h := pick(srv.(S))
			if interceptor == nil {
				return h(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return h(ctx, req.(*structpb.Struct))
			})
		},
	}
}

// Describe registers a file descriptor for desc in the global proto registry,
// which is where gRPC reflection looks services up. desc.Metadata names the
// file; every method takes and returns google.protobuf.Struct.
func Describe(desc *grpc.ServiceDesc) error {
	file, _ := desc.Metadata.(string)
	if file == "" {
		return fmt.Errorf("service %s has no descriptor file name", desc.ServiceName)
	}
	dot := strings.LastIndex(desc.ServiceName, ".")
	if dot <= 0 {
		return fmt.Errorf("service name %q has no package", desc.ServiceName)
	}

	msg := "." + string((&structpb.Struct{}).ProtoReflect().Descriptor().FullName())
	methods := make([]*descriptorpb.MethodDescriptorProto, 0, len(desc.Methods))
	for _, m := range desc.Methods {
		methods = append(methods, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(m.MethodName),
			InputType:  proto.String(msg),
			OutputType: proto.String(msg),
		})
	}

	fdp := &descriptorpb.FileDescriptorProto{
		Name:       proto.String(file),
		Package:    proto.String(desc.ServiceName[:dot]),
		Dependency: []string{structpb.File_google_protobuf_struct_proto.Path()},
		Syntax:     proto.String("proto3"),
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name:   proto.String(desc.ServiceName[dot+1:]),
			Method: methods,
		}},
	}
	fd, err := protodesc.NewFile(fdp, protoregistry.GlobalFiles)
	if err != nil {
		return fmt.Errorf("failed to describe %s: %w", desc.ServiceName, err)
	}
	return protoregistry.GlobalFiles.RegisterFile(fd)
}

// MustDescribe is Describe for package initialisation.
func MustDescribe(desc *grpc.ServiceDesc) {
	if err := Describe(desc); err != nil {
		panic(err)
	}
}

// FullMethod returns the "/service/method" name interceptors see.
func FullMethod(service, name string) string {
	return "/" + service + "/" + name
}

// ToStruct converts any JSON-serialisable value into a Struct. Values that do
// not encode to a JSON object are wrapped as {"items": v}.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	if len(b) == 0 || b[0] != '{' {
		b, err = json.Marshal(map[string]json.RawMessage{"items": b})
		if err != nil {
			return nil, fmt.Errorf("failed to encode response: %w", err)
		}
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return out, nil
}

// FromStruct decodes a Struct request into dst using its JSON tags.
func FromStruct(in *structpb.Struct, dst any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	b, err := protojson.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

// Caller returns the identity the auth interceptor attached to ctx.
func Caller(ctx context.Context) (auth.Identity, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Identity{}, status.Error(codes.Unauthenticated, "missing or invalid access token")
	}
	return id, nil
}
