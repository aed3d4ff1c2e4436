package s3

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// mockRoundTripper is an in memory fake of the subset of S3 used by the store,
// including conditional PutObject semantics
type mockRoundTripper struct {
	mu      sync.Mutex
	bucket  string
	objects map[string]mockObject
	failGet bool
}

type mockObject struct {
	body []byte
	etag string
}

func newMockRoundTripper(bucket string) *mockRoundTripper {
	return &mockRoundTripper{
		bucket:  bucket,
		objects: make(map[string]mockObject),
	}
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	if len(parts) != 2 || parts[0] != m.bucket {
		return errorResponse(http.StatusNotFound, "NoSuchBucket"), nil
	}
	key := parts[1]

	m.mu.Lock()
	defer m.mu.Unlock()

	switch req.Method {
	case http.MethodGet:
		if m.failGet {
			return errorResponse(http.StatusForbidden, "AccessDenied"), nil
		}

		obj, ok := m.objects[key]
		if !ok {
			return errorResponse(http.StatusNotFound, "NoSuchKey"), nil
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(obj.body)),
			Header: http.Header{
				"Content-Length": {fmt.Sprintf("%d", len(obj.body))},
				"Content-Type":   {contentType},
				"Etag":           {obj.etag},
			},
			ContentLength: int64(len(obj.body)),
		}, nil
	case http.MethodPut:
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		if decoded, ok := decodeChunked(body); ok {
			body = decoded
		}

		existing, exists := m.objects[key]
		ifMatch := req.Header.Get("If-Match")
		ifNoneMatch := req.Header.Get("If-None-Match")
		switch {
		case ifNoneMatch == "*" && exists:
			return errorResponse(http.StatusPreconditionFailed, "PreconditionFailed"), nil
		case len(ifMatch) > 0 && !exists:
			return errorResponse(http.StatusNotFound, "NoSuchKey"), nil
		case len(ifMatch) > 0 && ifMatch != existing.etag:
			return errorResponse(http.StatusPreconditionFailed, "PreconditionFailed"), nil
		}

		hash := md5.Sum(body)
		obj := mockObject{
			body: body,
			etag: `"` + hex.EncodeToString(hash[:]) + `"`,
		}
		m.objects[key] = obj

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     http.Header{"Etag": {obj.etag}},
		}, nil
	}

	return errorResponse(http.StatusNotImplemented, "NotImplemented"), nil
}

func (m *mockRoundTripper) setFailGet(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failGet = fail
}

func (m *mockRoundTripper) putRaw(key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = mockObject{body: body, etag: `"raw"`}
}

func (m *mockRoundTripper) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects = make(map[string]mockObject)
	m.failGet = false
}

func errorResponse(status int, code string) *http.Response {
	body := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message><RequestId>mock</RequestId></Error>`, code, code)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": {"application/xml"}},
	}
}

// decodeChunked decodes a single chunk aws-chunked payload: <hex>\r\n<body>\r\n0\r\n...
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}

	sizeHex := parts[0]
	if idx := strings.Index(sizeHex, ";"); idx >= 0 {
		sizeHex = sizeHex[:idx]
	}

	var size int64
	if _, err := fmt.Sscanf(sizeHex, "%x", &size); err != nil {
		return nil, false
	}
	if int64(len(parts[1])) != size || !strings.HasPrefix(parts[2], "0") {
		return nil, false
	}
	return []byte(parts[1]), true
}
