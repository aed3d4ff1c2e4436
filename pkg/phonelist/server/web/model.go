package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const (
	fileQueryParameter = "file"

	maxRequestBodySize = 1 << 20
)

// Kind identifies which operation a request maps to
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSingleAppend
	KindBatchAppend
	KindRead
)

func (k Kind) String() string {
	switch k {
	case KindSingleAppend:
		return "single_append"
	case KindBatchAppend:
		return "batch_append"
	case KindRead:
		return "read"
	}
	return "unknown"
}

// Request is a parsed inbound request. Phone is only set for KindSingleAppend
// and Phones only for KindBatchAppend.
type Request struct {
	Kind   Kind
	File   string
	Phone  string
	Phones []string
}

type requestError struct {
	statusCode int
	message    string
}

func (e *requestError) Error() string {
	return e.message
}

func newBadRequestError(message string) error {
	return &requestError{statusCode: http.StatusBadRequest, message: message}
}

type httpRequestBody struct {
	File   *string          `json:"file"`
	Phone  *json.RawMessage `json:"phone"`
	Phones *json.RawMessage `json:"phones"`
}

func newSingleAppendRequestFromHttpContext(r *http.Request) (*Request, error) {
	body, err := readRequestBody(r, true)
	if err != nil {
		return nil, err
	}

	file := fileFromHttpContext(r, body)
	if len(file) == 0 {
		return nil, newBadRequestError(missingFileMessage)
	}

	var phone string
	if body.Phone != nil {
		phone, err = stringifyPhone(*body.Phone)
		if err != nil {
			return nil, err
		}
	}

	return &Request{
		Kind:  KindSingleAppend,
		File:  file,
		Phone: phone,
	}, nil
}

func newBatchAppendRequestFromHttpContext(r *http.Request) (*Request, error) {
	body, err := readRequestBody(r, true)
	if err != nil {
		return nil, err
	}

	file := fileFromHttpContext(r, body)
	if len(file) == 0 {
		return nil, newBadRequestError(missingFileMessage)
	}

	if body.Phones == nil {
		return nil, newBadRequestError(phonesNotArrayMessage)
	}

	var rawPhones []json.RawMessage
	decoder := json.NewDecoder(bytes.NewReader(*body.Phones))
	decoder.UseNumber()
	if err := decoder.Decode(&rawPhones); err != nil || rawPhones == nil {
		return nil, newBadRequestError(phonesNotArrayMessage)
	}

	phones := make([]string, len(rawPhones))
	for i, rawPhone := range rawPhones {
		phones[i], err = stringifyPhone(rawPhone)
		if err != nil {
			return nil, err
		}
	}

	return &Request{
		Kind:   KindBatchAppend,
		File:   file,
		Phones: phones,
	}, nil
}

func newReadRequestFromHttpContext(r *http.Request) (*Request, error) {
	var body *httpRequestBody
	var err error
	if r.Method == http.MethodPost {
		body, err = readRequestBody(r, false)
		if err != nil {
			return nil, err
		}
	}

	file := fileFromHttpContext(r, body)
	if len(file) == 0 {
		return nil, newBadRequestError(missingFileMessage)
	}

	return &Request{
		Kind: KindRead,
		File: file,
	}, nil
}

// readRequestBody decodes the JSON body. An empty body decodes to an empty
// request, while a malformed one is rejected only when strict is set.
func readRequestBody(r *http.Request, strict bool) (*httpRequestBody, error) {
	var body httpRequestBody
	if r.Body == nil {
		return &body, nil
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize+1))
	if err != nil {
		return nil, errors.Wrap(err, "error reading request body")
	}
	if len(raw) > maxRequestBodySize {
		return nil, &requestError{statusCode: http.StatusRequestEntityTooLarge, message: requestTooLargeMessage}
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return &body, nil
	}

	if err := json.Unmarshal(raw, &body); err != nil {
		if strict {
			return nil, newBadRequestError(invalidBodyMessage)
		}
		return &httpRequestBody{}, nil
	}
	return &body, nil
}

// fileFromHttpContext prefers the query parameter over the body field
func fileFromHttpContext(r *http.Request, body *httpRequestBody) string {
	if file := strings.TrimSpace(r.URL.Query().Get(fileQueryParameter)); len(file) > 0 {
		return file
	}
	if body != nil && body.File != nil {
		return strings.TrimSpace(*body.File)
	}
	return ""
}

// stringifyPhone converts a JSON value into the raw phone string handed to
// validation. Numbers keep their literal text, so 1234567890 becomes
// "1234567890". Values that aren't strings or numbers are rendered as text
// and will fail validation.
func stringifyPhone(raw json.RawMessage) (string, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return "", newBadRequestError(invalidBodyMessage)
	}

	switch typed := value.(type) {
	case string:
		return typed, nil
	case json.Number:
		return typed.String(), nil
	case nil:
		return "null", nil
	case bool:
		return fmt.Sprintf("%t", typed), nil
	default:
		return string(bytes.TrimSpace(raw)), nil
	}
}
