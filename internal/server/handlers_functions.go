package server

import (
	"fmt"
	"net/http"

	"funcreg/internal/api"
	"funcreg/internal/models"
)

func (s *Server) handleCreateFunction(w http.ResponseWriter, r *http.Request) {
	var req api.FunctionCreateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	fn, err := s.functions.Create(r.Context(), models.FunctionSpec{
		ID:      req.ID,
		Version: req.Version,
		Types:   req.Types,
		Outputs: req.Outputs,
	}, s.ownerFromRequest(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, fn)
}

func (s *Server) handleListFunctions(w http.ResponseWriter, r *http.Request) {
	offset, err := queryIntDefault(r, "offset", 0)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	limit, err := queryIntDefault(r, "limit", models.DefaultListLimit)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	list, err := s.functions.Find(r.Context(), FindFunctionsInput{
		IDPartial: optionalQuery(r, "partial_search"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetFunction(w http.ResponseWriter, r *http.Request) {
	id, err := requireFunctionID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	fn, err := s.functions.Get(r.Context(), id, s.ownerFromRequest(r), optionalQuery(r, "version"), optionalQuery(r, "type"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, fn)
}

func (s *Server) handleUpdateFunction(w http.ResponseWriter, r *http.Request) {
	id, err := requireFunctionID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}
	version := optionalQuery(r, "version")
	if version == "" {
		s.writeErrorReq(w, r, http.StatusNotAcceptable, notAcceptableCode(fmt.Errorf("version is required"), ErrCodeMissingRequired))
		return
	}

	var req api.FunctionUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	fn, err := s.functions.Update(r.Context(), id, version, req.Types, req.Outputs, s.ownerFromRequest(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, fn)
}

func (s *Server) handleDeleteFunction(w http.ResponseWriter, r *http.Request) {
	id, err := requireFunctionID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	result, err := s.functions.Delete(r.Context(), id, s.ownerFromRequest(r), optionalQuery(r, "version"), optionalQuery(r, "type"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleFunctionVersions(w http.ResponseWriter, r *http.Request) {
	id, err := requireFunctionID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	versions, err := s.functions.Versions(r.Context(), id, s.ownerFromRequest(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, versions)
}
