package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Staged code.
	mux.HandleFunc("POST /v1/code", s.handleUploadCode)
	mux.HandleFunc("GET /v1/code/{id}", s.handleDownloadCode)

	// Functions collection.
	mux.HandleFunc("POST /v1/functions", s.handleCreateFunction)
	mux.HandleFunc("GET /v1/functions", s.handleListFunctions)

	// Single function.
	mux.HandleFunc("GET /v1/functions/{id}", s.handleGetFunction)
	mux.HandleFunc("PUT /v1/functions/{id}", s.handleUpdateFunction)
	mux.HandleFunc("DELETE /v1/functions/{id}", s.handleDeleteFunction)
	mux.HandleFunc("GET /v1/functions/{id}/versions", s.handleFunctionVersions)

	// Admin.
	mux.HandleFunc("POST /v1/admin/gc", s.handleAdminGC)

	return mux
}
