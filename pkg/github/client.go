package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/code-payments/phonelist-server/pkg/metrics"
)

const (
	DefaultBaseUrl = "https://api.github.com"

	acceptHeader    = "application/vnd.github.v3+json"
	userAgentHeader = "phonelist-server"

	// Response bodies are small JSON envelopes around list documents
	maxResponseBodySize = 8 << 20

	metricsStructName = "github.client"
)

var (
	ErrNotFound = errors.New("github content not found")
	ErrConflict = errors.New("github content sha does not match")
)

// StatusError is returned when the GitHub API responds with an unexpected
// HTTP status code
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if len(e.Message) == 0 {
		return fmt.Sprintf("unexpected http status code: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected http status code: %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	client  *http.Client
	baseUrl string
	token   string
}

// NewClient returns a new GitHub contents API client. An empty baseUrl uses
// the public API.
func NewClient(baseUrl, token string, timeout time.Duration) *Client {
	if len(baseUrl) == 0 {
		baseUrl = DefaultBaseUrl
	}

	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseUrl: strings.TrimRight(baseUrl, "/"),
		token:   token,
	}
}

// Contents is a file within a repository
type Contents struct {
	Path    string
	Sha     string
	Content []byte
}

// Committer identifies the author of a commit made through the API
type Committer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PutContentsRequest creates or replaces a file. A nil Sha creates the file,
// and the API rejects the request if it already exists.
type PutContentsRequest struct {
	Message   string
	Content   []byte
	Sha       *string
	Committer *Committer
}

type contentsResponse struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	Sha      string `json:"sha"`
	Encoding string `json:"encoding"`
	Content  string `json:"content"`
}

type putContentsBody struct {
	Message   string     `json:"message"`
	Content   string     `json:"content"`
	Sha       *string    `json:"sha,omitempty"`
	Committer *Committer `json:"committer,omitempty"`
}

type putContentsResponse struct {
	Content struct {
		Sha string `json:"sha"`
	} `json:"content"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// GetContents fetches a file and its blob sha. ErrNotFound is returned when the
// file doesn't exist.
func (c *Client) GetContents(ctx context.Context, owner, repo, path string) (*Contents, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetContents")
	defer tracer.End()

	contents, err := func() (*Contents, error) {
		req, err := c.newRequest(ctx, http.MethodGet, owner, repo, path, nil)
		if err != nil {
			return nil, err
		}

		var result contentsResponse
		if err := c.do(req, http.StatusOK, &result); err != nil {
			return nil, err
		}

		if result.Type != "" && result.Type != "file" {
			return nil, errors.Errorf("%s is a %s, not a file", path, result.Type)
		}
		if result.Encoding != "" && result.Encoding != "base64" {
			return nil, errors.Errorf("unsupported content encoding: %s", result.Encoding)
		}

		// The API wraps base64 content at 60 columns
		decoded, err := base64.StdEncoding.DecodeString(strings.NewReplacer("\n", "", "\r", "").Replace(result.Content))
		if err != nil {
			return nil, errors.Wrap(err, "error decoding content")
		}

		return &Contents{
			Path:    result.Path,
			Sha:     result.Sha,
			Content: decoded,
		}, nil
	}()
	if err != nil && err != ErrNotFound {
		tracer.OnError(err)
	}
	return contents, err
}

// PutContents creates or replaces a file, returning the new blob sha. ErrConflict
// is returned when the provided sha is stale, or when creating a file that
// already exists.
func (c *Client) PutContents(ctx context.Context, owner, repo, path string, request *PutContentsRequest) (string, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "PutContents")
	defer tracer.End()

	sha, err := func() (string, error) {
		body, err := json.Marshal(&putContentsBody{
			Message:   request.Message,
			Content:   base64.StdEncoding.EncodeToString(request.Content),
			Sha:       request.Sha,
			Committer: request.Committer,
		})
		if err != nil {
			return "", err
		}

		req, err := c.newRequest(ctx, http.MethodPut, owner, repo, path, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		var result putContentsResponse
		if err := c.do(req, http.StatusOK, &result); err != nil {
			return "", err
		}
		return result.Content.Sha, nil
	}()
	if err != nil && err != ErrConflict {
		tracer.OnError(err)
	}
	return sha, err
}

func (c *Client) newRequest(ctx context.Context, method, owner, repo, path string, body io.Reader) (*http.Request, error) {
	endpoint := fmt.Sprintf(
		"%s/repos/%s/%s/contents/%s",
		c.baseUrl,
		url.PathEscape(owner),
		url.PathEscape(repo),
		escapePath(path),
	)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgentHeader)
	return req, nil
}

func (c *Client) do(req *http.Request, expectedStatus int, result interface{}) error {
	externalTracer := metrics.TraceExternalRequest(req)

	resp, err := c.client.Do(req)
	externalTracer.End(resp)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case expectedStatus, http.StatusCreated:
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	default:
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)

		// Stale or missing shas are reported as validation failures on some
		// API versions
		if resp.StatusCode == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(apiErr.Message), "sha") {
			return ErrConflict
		}

		return &StatusError{
			StatusCode: resp.StatusCode,
			Message:    apiErr.Message,
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return errors.Wrap(err, "malformed response body")
	}
	return nil
}

func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
