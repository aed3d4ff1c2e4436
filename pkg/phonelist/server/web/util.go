package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/code-payments/phonelist-server/pkg/phone"
	"github.com/code-payments/phonelist-server/pkg/phonelist"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
)

const (
	successJsonKey         = "success"
	messageJsonKey         = "message"
	errorJsonKey           = "error"
	totalJsonKey           = "total"
	addedJsonKey           = "added"
	duplicatesJsonKey      = "duplicates"
	duplicatePhonesJsonKey = "duplicatePhones"
	invalidJsonKey         = "invalid"
	phonesJsonKey          = "phones"
)

const (
	methodNotAllowedMessage   = "Method not allowed"
	missingFileMessage        = "File parameter is required (use ?file=filename in URL)"
	invalidFileMessage        = "Invalid file parameter"
	invalidBodyMessage        = "Request body must be valid JSON"
	phonesNotArrayMessage     = "Phones must be an array"
	emptyPhonesMessage        = "Phones array cannot be empty"
	invalidPhonesMessage      = "Some phone numbers are invalid"
	duplicatePhoneMessage     = "Phone number already exists"
	phoneAddedMessage         = "Phone number added successfully"
	bulkAddCompletedMessage   = "Bulk add completed"
	notConfiguredMessage      = "GitHub configuration missing"
	retryExhaustedMessage     = "Failed to update file after multiple attempts"
	timeoutMessage            = "Request timed out"
	storeFailureMessage       = "Failed to update file"
	internalServerMessage     = "Internal server error"
	tooManyRequestsMessage    = "Too many requests"
	requestTooLargeMessage    = "Request body too large"
	validationFailureFallback = "Invalid request"
)

type GenericApiResponseBody map[string]any

func NewGenericApiSuccessResponseBody(message string) GenericApiResponseBody {
	return map[string]any{
		successJsonKey: true,
		messageJsonKey: message,
	}
}

func NewGenericApiFailureResponseBody(message string) GenericApiResponseBody {
	return map[string]any{
		successJsonKey: false,
		messageJsonKey: message,
	}
}

func (b *GenericApiResponseBody) ToString() string {
	marshalled, _ := json.Marshal(b)
	return string(marshalled)
}

func writeJsonResponse(w http.ResponseWriter, statusCode int, body GenericApiResponseBody) error {
	w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
	w.WriteHeader(statusCode)
	_, err := w.Write([]byte(body.ToString()))
	return err
}

// handleMutationError maps a failed mutation onto a status code and response
// body. Messages for server side failures never include internal error text.
func handleMutationError(err error) (int, GenericApiResponseBody) {
	var batchErr *phone.BatchError
	var reqErr *requestError

	switch {
	case errors.As(err, &reqErr):
		return reqErr.statusCode, NewGenericApiFailureResponseBody(reqErr.message)
	case errors.As(err, &batchErr):
		body := NewGenericApiFailureResponseBody(invalidPhonesMessage)
		body[invalidJsonKey] = batchErr.Values()
		return http.StatusBadRequest, body
	case errors.Is(err, phone.ErrEmptyBatch):
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(emptyPhonesMessage)
	case errors.Is(err, phone.ErrMissingValue),
		errors.Is(err, phone.ErrInvalidLength),
		errors.Is(err, phone.ErrInvalidFormat):
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(validationMessage(err))
	case errors.Is(err, document.ErrInvalidName):
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(invalidFileMessage)
	case errors.Is(err, phonelist.ErrDuplicatePhone):
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(duplicatePhoneMessage)
	case errors.Is(err, document.ErrNotConfigured):
		return http.StatusInternalServerError, NewGenericApiFailureResponseBody(notConfiguredMessage)
	case errors.Is(err, phonelist.ErrRetryExhausted):
		return http.StatusInternalServerError, NewGenericApiFailureResponseBody(retryExhaustedMessage)
	case errors.Is(err, phonelist.ErrTimeout):
		return http.StatusRequestTimeout, NewGenericApiFailureResponseBody(timeoutMessage)
	case document.IsStoreError(err):
		return http.StatusInternalServerError, NewGenericApiFailureResponseBody(storeFailureMessage)
	default:
		return http.StatusInternalServerError, NewGenericApiFailureResponseBody(internalServerMessage)
	}
}

// validationMessage capitalizes the phone validation error for display
func validationMessage(err error) string {
	var message string
	switch {
	case errors.Is(err, phone.ErrMissingValue):
		message = phone.ErrMissingValue.Error()
	case errors.Is(err, phone.ErrInvalidLength):
		message = phone.ErrInvalidLength.Error()
	case errors.Is(err, phone.ErrInvalidFormat):
		message = phone.ErrInvalidFormat.Error()
	default:
		return validationFailureFallback
	}
	return strings.ToUpper(message[:1]) + message[1:]
}
