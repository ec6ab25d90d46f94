package server

import (
	"net/http"

	"redline/internal/gateway/handler"
	"redline/internal/gateway/handler/rpc"
	"redline/internal/gateway/middleware"
)

func NewMux(
	reviewHandler *rpc.ReviewHandler,
	chatHandler *rpc.ChatHandler,
	watchHandler *rpc.WatchHandler,
	artifactHandler *handler.ArtifactHandler,
) http.Handler {
	mux := http.NewServeMux()

	// RPC Handlers
	reviewHandler.Mount(mux)
	chatHandler.Mount(mux)

	// Streaming & artifact endpoints
	mux.HandleFunc("/api/watch", watchHandler.HandleWatchWS)
	mux.HandleFunc("/api/artifacts", artifactHandler.HandleGet)
	mux.HandleFunc("/api/artifacts/list", artifactHandler.HandleList)

	// Middleware
	return middleware.CORS(mux)
}
