package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"funcreg/internal/api"
)

func (s *Server) handleUploadCode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.multipartMaxMemory); err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, classifyMultipartError(err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(api.CodeFormField)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusNotAcceptable, notAcceptableCode(fmt.Errorf("file not provided"), ErrCodeMissingRequired))
		return
	}
	defer file.Close()

	buffered := bufio.NewReader(file)
	mediaType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mediaType == "" || strings.EqualFold(mediaType, fallbackCodeMediaType) {
		peek, _ := buffered.Peek(512)
		mediaType = http.DetectContentType(peek)
	}

	staged, err := s.code.StageCode(r.Context(), StageCodeInput{
		Filename:  header.Filename,
		MediaType: mediaType,
	}, buffered)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, staged)
}

func (s *Server) handleDownloadCode(w http.ResponseWriter, r *http.Request) {
	id, err := requireCodeID(r)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	content, err := s.code.OpenCode(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer content.Reader.Close()

	mediaType := content.MediaType
	if mediaType == "" {
		mediaType = fallbackCodeMediaType
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", strconv.FormatInt(content.SizeBytes, 10))
	if content.Filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": content.Filename}))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, content.Reader); err != nil {
		s.log().Error("stream code", "code_id", id, "error", err)
	}
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(strings.ToLower(err.Error()), "request body too large") {
		return badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidArgument)
}
