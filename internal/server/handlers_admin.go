package server

import (
	"fmt"
	"net/http"
	"time"

	"funcreg/internal/api"
)

func (s *Server) handleAdminGC(w http.ResponseWriter, r *http.Request) {
	var req api.CodeGCRequest
	if !s.decodeOptionalJSONReq(w, r, &req) {
		return
	}
	if req.BatchSize < 0 {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("batch_size must be >= 0"), ErrCodeInvalidArgument))
		return
	}

	result, err := s.collector.Sweep(r.Context(), req.BatchSize, req.DryRun)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	resp := api.CodeGCResponse{
		Cutoff:         result.Cutoff.Format(time.RFC3339),
		CandidateCount: result.CandidateCount,
		DeletedCount:   result.DeletedCount,
		SkippedCount:   result.SkippedCount,
		FailedCount:    result.FailedCount,
		ReclaimedBytes: result.ReclaimedBytes,
		DryRun:         result.DryRun,
	}
	s.writeJSON(w, http.StatusOK, resp)
}
