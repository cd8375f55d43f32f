package server

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"funcreg/internal/api"
	"funcreg/internal/models"
)

func validateCodeID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func requireCodeID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if !validateCodeID(id) {
		return "", badRequestCode(fmt.Errorf("invalid code id"), ErrCodeInvalidID)
	}
	return id, nil
}

func requireFunctionID(r *http.Request) (string, error) {
	id, err := models.NormalizeFunctionID(r.PathValue("id"))
	if err != nil {
		return "", badRequestCode(err, ErrCodeInvalidID)
	}
	return id, nil
}

// optionalQuery returns a trimmed query value; an empty value means absent.
func optionalQuery(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

func normalizeMediaType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", badRequestCode(fmt.Errorf("invalid media type"), ErrCodeInvalidMediaType)
	}
	return strings.ToLower(strings.TrimSpace(parsed)), nil
}

func (s *Server) ownerFromRequest(r *http.Request) string {
	if owner := strings.TrimSpace(r.Header.Get(api.OwnerHeader)); owner != "" {
		return owner
	}
	return s.defaultOwner
}

// normalizeSpec validates a function definition. Missing or malformed fields
// are reported as not acceptable.
func normalizeSpec(spec models.FunctionSpec) (models.FunctionSpec, error) {
	var err error
	if spec.ID, err = models.NormalizeFunctionID(spec.ID); err != nil {
		return spec, notAcceptableCode(err, ErrCodeMissingRequired)
	}
	if spec.Version, err = models.NormalizeVersion(spec.Version); err != nil {
		return spec, notAcceptableCode(err, ErrCodeInvalidVersion)
	}
	if spec.Outputs, err = models.NormalizeOutputs(spec.Outputs); err != nil {
		return spec, notAcceptableCode(err, ErrCodeInvalidOutputs)
	}
	if spec.Types, err = models.NormalizeFunctionTypes(spec.Types); err != nil {
		return spec, notAcceptableCode(err, ErrCodeInvalidType)
	}
	return spec, nil
}
