package server

import (
	"net/http"

	"funcreg/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	version, err := s.store.SchemaVersion(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	staged, claimed, err := s.store.CodeBlobStats(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	resp := api.InfoResponse{
		DBPath:        s.dbPath,
		BlobRoot:      s.blobRoot,
		SchemaVersion: version,
		StagedBlobs:   staged,
		ClaimedBlobs:  claimed,
		StagingTTL:    s.collector.TTL().String(),
		GCInterval:    s.collector.Interval().String(),
	}

	s.writeJSON(w, http.StatusOK, resp)
}
