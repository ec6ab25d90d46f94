// Package rpc exposes the review gateway as Connect unary procedures. The
// service carries no generated protobuf; handlers are built directly over
// plain JSON structs with a replacement codec.
package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	artifactrepo "redline/internal/gateway/repository/artifact"
	"redline/internal/gateway/service/reviewsession"
	"redline/internal/review"
)

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

// handlerOptions applies the JSON codec to every procedure.
func handlerOptions() []connect.HandlerOption {
	return []connect.HandlerOption{connect.WithCodec(jsonCodec{})}
}

// asConnectError classifies core errors onto Connect codes.
func asConnectError(err error) *connect.Error {
	var collab *review.CollaboratorError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, review.ErrNotFound),
		errors.Is(err, review.ErrActionNotFound),
		errors.Is(err, artifactrepo.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, review.ErrInvalidState),
		errors.Is(err, review.ErrNothingToRegenerate):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, review.ErrAlreadyInProgress),
		errors.Is(err, reviewsession.ErrBusy):
		return connect.NewError(connect.CodeAborted, err)
	case errors.As(err, &collab):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func requireField(name, value string) *connect.Error {
	if value == "" {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s is required", name))
	}
	return nil
}
