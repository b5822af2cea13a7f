// Package dashboard implements the gRPC transport for the dashboard service.
//
// The service is described by hand with well-known protobuf types: every
// method takes google.protobuf.Empty and answers with the dashboard snapshot
// encoded as google.protobuf.Struct, so no generated code is required.
package dashboard
