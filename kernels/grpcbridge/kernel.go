// Package main implements the grpcbridge kernel: a dynamic gRPC client
// exposed to sxs programs via connect, load-proto, invoke, and close.
//
// Grounded on internal/evaluator/builtins_grpc.go's grpcConnect /
// grpcLoadProto / grpcInvoke trio — same github.com/jhump/protoreflect
// dynamic-message approach, same google.golang.org/grpc bare Invoke call
// against a descriptor found by "package.Service/Method" path. The
// teacher converts requests and responses to its own Record/Map object
// types field by field; since kernelapi's ABI is string/int/real/symbol
// centric rather than structural, request and response payloads cross
// the boundary as JSON text, round-tripped through dynamic.Message's
// MarshalJSON/UnmarshalJSON instead of the teacher's field-by-field
// convertToProtoValue walk.
package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bosley/sxs/pkg/kernelapi"
)

var (
	protoRegistryMutex sync.RWMutex
	protoRegistry      = make(map[string]*desc.FileDescriptor)

	connMutex sync.Mutex
	conns     = make(map[string]*grpc.ClientConn)
)

func kernelError(api kernelapi.APITable, message string) kernelapi.Object {
	return api.CreateError(api.CreateString(message))
}

func findMethodDescriptor(path string) (*desc.MethodDescriptor, error) {
	idx := -1
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("invalid method path %q, expected 'package.Service/Method'", path)
	}
	serviceName, methodName := path[:idx], path[idx+1:]

	protoRegistryMutex.RLock()
	defer protoRegistryMutex.RUnlock()

	for _, fd := range protoRegistry {
		svc := fd.FindService(serviceName)
		if svc == nil {
			continue
		}
		if method := svc.FindMethodByName(methodName); method != nil {
			return method, nil
		}
	}
	return nil, fmt.Errorf("method %q not found (did you load-proto it?)", path)
}

// KernelInit is the plugin entry point the sxs runtime looks up via
// plugin.Lookup after plugin.Open.
func KernelInit(registry kernelapi.Registry, api kernelapi.APITable) {
	registry.Register("connect", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 1 {
			return kernelError(api, "connect requires 1 argument")
		}
		target := api.AsString(args[0])
		if target == "" {
			return kernelError(api, "connect: target must not be empty")
		}

		conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return kernelError(api, fmt.Sprintf("connect: %s", err))
		}

		id := uuid.New().String()
		connMutex.Lock()
		conns[id] = conn
		connMutex.Unlock()

		return api.CreateSymbol(id)
	}, []kernelapi.Kind{kernelapi.KindString}, kernelapi.KindSymbol, false)

	registry.Register("close", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 1 {
			return kernelError(api, "close requires 1 argument")
		}
		id := api.AsSymbol(args[0])

		connMutex.Lock()
		conn, ok := conns[id]
		delete(conns, id)
		connMutex.Unlock()
		if !ok {
			return api.CreateInt(0)
		}
		if err := conn.Close(); err != nil {
			return kernelError(api, fmt.Sprintf("close: %s", err))
		}
		return api.CreateInt(1)
	}, []kernelapi.Kind{kernelapi.KindSymbol}, kernelapi.KindInteger, false)

	registry.Register("load-proto", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 1 {
			return kernelError(api, "load-proto requires 1 argument")
		}
		path := api.AsString(args[0])
		if path == "" {
			return kernelError(api, "load-proto: path must not be empty")
		}

		parser := protoparse.Parser{ImportPaths: []string{"."}}
		fds, err := parser.ParseFiles(path)
		if err != nil {
			return kernelError(api, fmt.Sprintf("load-proto: %s", err))
		}

		protoRegistryMutex.Lock()
		defer protoRegistryMutex.Unlock()
		for _, fd := range fds {
			protoRegistry[fd.GetName()] = fd
		}
		return api.CreateInt(int64(len(fds)))
	}, []kernelapi.Kind{kernelapi.KindString}, kernelapi.KindInteger, false)

	registry.Register("invoke", func(args []kernelapi.Object) kernelapi.Object {
		if len(args) < 3 {
			return kernelError(api, "invoke requires 3 arguments")
		}
		id := api.AsSymbol(args[0])
		method := api.AsString(args[1])
		requestJSON := api.AsString(args[2])

		connMutex.Lock()
		conn, ok := conns[id]
		connMutex.Unlock()
		if !ok {
			return kernelError(api, "invoke: unknown connection")
		}

		md, err := findMethodDescriptor(method)
		if err != nil {
			return kernelError(api, err.Error())
		}

		reqMsg := dynamic.NewMessage(md.GetInputType())
		if err := reqMsg.UnmarshalJSON([]byte(requestJSON)); err != nil {
			return kernelError(api, fmt.Sprintf("invoke: decoding request: %s", err))
		}

		respMsg := dynamic.NewMessage(md.GetOutputType())

		path := method
		if path[0] != '/' {
			path = "/" + path
		}

		if err := conn.Invoke(context.Background(), path, reqMsg, respMsg); err != nil {
			return kernelError(api, fmt.Sprintf("invoke: RPC failed: %s", err))
		}

		respJSON, err := respMsg.MarshalJSON()
		if err != nil {
			return kernelError(api, fmt.Sprintf("invoke: encoding response: %s", err))
		}
		return api.CreateString(string(respJSON))
	}, []kernelapi.Kind{kernelapi.KindSymbol, kernelapi.KindString, kernelapi.KindString}, kernelapi.KindString, false)
}
