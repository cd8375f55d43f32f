package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"funcreg/internal/models"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "FUNCREG_HTTP_TIMEOUT"

	// OwnerHeader carries the caller identity resolved by the upstream auth layer.
	OwnerHeader = "X-Owner"
	// CodeFormField is the multipart field holding uploaded code.
	CodeFormField = "file"
)

// Client is a simple HTTP client for the funcreg API.
type Client struct {
	baseURL string
	http    *http.Client
	owner   string
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// WithOwner returns a copy of the client that sends owner on every request.
func (c *Client) WithOwner(owner string) *Client {
	cp := *c
	cp.owner = strings.TrimSpace(owner)
	return &cp
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/v1/info", nil, nil, &resp)
	return resp, err
}

// UploadCode stages one code payload and returns its id.
func (c *Client) UploadCode(ctx context.Context, filename string, content io.Reader) (models.StagedCode, error) {
	var resp models.StagedCode

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile(CodeFormField, filename)
	if err != nil {
		return resp, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return resp, err
	}
	if err := mw.Close(); err != nil {
		return resp, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/code", body)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.setOwnerHeader(req)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

// DownloadCode streams one code payload into w.
func (c *Client) DownloadCode(ctx context.Context, id string, w io.Writer) (CodeDownload, error) {
	var meta CodeDownload
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/code/"+url.PathEscape(id), nil)
	if err != nil {
		return meta, err
	}
	c.setOwnerHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return meta, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return meta, decodeError(resp)
	}

	meta.MediaType = resp.Header.Get("Content-Type")
	meta.Filename = filenameFromDisposition(resp.Header.Get("Content-Disposition"))
	n, err := io.Copy(w, resp.Body)
	meta.SizeBytes = n
	return meta, err
}

func (c *Client) CreateFunction(ctx context.Context, req FunctionCreateRequest) (models.Function, error) {
	var resp models.Function
	err := c.do(ctx, http.MethodPost, "/v1/functions", nil, req, &resp)
	return resp, err
}

func (c *Client) UpdateFunction(ctx context.Context, id, version string, req FunctionUpdateRequest) (models.Function, error) {
	var resp models.Function
	query := url.Values{}
	query.Set("version", version)
	err := c.do(ctx, http.MethodPut, "/v1/functions/"+url.PathEscape(id), query, req, &resp)
	return resp, err
}

func (c *Client) GetFunction(ctx context.Context, id, version, typ string) (models.Function, error) {
	var resp models.Function
	err := c.do(ctx, http.MethodGet, "/v1/functions/"+url.PathEscape(id), versionTypeQuery(version, typ), nil, &resp)
	return resp, err
}

func (c *Client) DeleteFunction(ctx context.Context, id, version, typ string) (models.DeleteResult, error) {
	var resp models.DeleteResult
	err := c.do(ctx, http.MethodDelete, "/v1/functions/"+url.PathEscape(id), versionTypeQuery(version, typ), nil, &resp)
	return resp, err
}

func (c *Client) FunctionVersions(ctx context.Context, id string) (models.FunctionVersions, error) {
	var resp models.FunctionVersions
	err := c.do(ctx, http.MethodGet, "/v1/functions/"+url.PathEscape(id)+"/versions", nil, nil, &resp)
	return resp, err
}

func (c *Client) ListFunctions(ctx context.Context, q FunctionListQuery) (models.FunctionList, error) {
	var resp models.FunctionList
	query := url.Values{}
	query.Set("offset", strconv.Itoa(q.Offset))
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if strings.TrimSpace(q.PartialSearch) != "" {
		query.Set("partial_search", strings.TrimSpace(q.PartialSearch))
	}
	err := c.do(ctx, http.MethodGet, "/v1/functions", query, nil, &resp)
	return resp, err
}

// CollectStagedCode triggers one garbage collection sweep.
func (c *Client) CollectStagedCode(ctx context.Context, req CodeGCRequest) (CodeGCResponse, error) {
	var resp CodeGCResponse
	err := c.do(ctx, http.MethodPost, "/v1/admin/gc", nil, req, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setOwnerHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		apiErr.Code = errResp.Code
		apiErr.ErrorCode = errResp.ErrorCode
		apiErr.Message = errResp.Error
		return apiErr
	}
	apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	return apiErr
}

func (c *Client) setOwnerHeader(req *http.Request) {
	if c.owner == "" || req == nil {
		return
	}
	req.Header.Set(OwnerHeader, c.owner)
}

func versionTypeQuery(version, typ string) url.Values {
	query := url.Values{}
	if v := strings.TrimSpace(version); v != "" {
		query.Set("version", v)
	}
	if t := strings.TrimSpace(typ); t != "" {
		query.Set("type", t)
	}
	return query
}

func filenameFromDisposition(value string) string {
	if value == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(value)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
