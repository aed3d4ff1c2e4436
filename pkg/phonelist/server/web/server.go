package web

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/phonelist-server/pkg/phonelist"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
)

const (
	apiPathPrefix = "/api"
	AddPath       = apiPathPrefix + "/add"
	BulkAddPath   = apiPathPrefix + "/admin/bulk-add"
	GetPath       = apiPathPrefix + "/get"

	contentTypeHeaderName      = "content-type"
	jsonContentTypeHeaderValue = "application/json"
)

type Server struct {
	log     *logrus.Entry
	service *phonelist.Service
}

func NewServer(service *phonelist.Service) *Server {
	return &Server{
		log:     logrus.StandardLogger().WithField("type", "phonelist/server/web"),
		service: service,
	}
}

func (s *Server) addHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithFields(logrus.Fields{
			"path":       path,
			"request_id": RequestIdFromContext(r.Context()),
		})

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			model, err := newSingleAppendRequestFromHttpContext(r)
			if err != nil {
				return handleMutationError(err)
			}

			log := log.WithField("document", model.File)

			outcome, err := s.service.AddPhone(ctx, model.File, model.Phone)
			if err != nil {
				statusCode, body := handleMutationError(err)
				if statusCode >= http.StatusInternalServerError {
					log.WithError(err).Warn("failure adding phone number")
				}
				return statusCode, body
			}

			body := NewGenericApiSuccessResponseBody(phoneAddedMessage)
			body[totalJsonKey] = outcome.Total
			return http.StatusOK, body
		}()

		if err := writeJsonResponse(w, statusCode, body); err != nil {
			log.WithError(err).Info("failed to write body")
		}
	}
}

func (s *Server) bulkAddHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithFields(logrus.Fields{
			"path":       path,
			"request_id": RequestIdFromContext(r.Context()),
		})

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			model, err := newBatchAppendRequestFromHttpContext(r)
			if err != nil {
				return handleMutationError(err)
			}

			log := log.WithFields(logrus.Fields{
				"document": model.File,
				"count":    len(model.Phones),
			})

			outcome, err := s.service.AddPhones(ctx, model.File, model.Phones)
			if err != nil {
				statusCode, body := handleMutationError(err)
				if statusCode >= http.StatusInternalServerError {
					log.WithError(err).Warn("failure bulk adding phone numbers")
				}
				return statusCode, body
			}

			body := NewGenericApiSuccessResponseBody(bulkAddCompletedMessage)
			body[addedJsonKey] = len(outcome.Added)
			body[duplicatesJsonKey] = len(outcome.Duplicates)
			body[totalJsonKey] = outcome.Total
			duplicatePhones := outcome.Duplicates
			if duplicatePhones == nil {
				duplicatePhones = []string{}
			}
			body[duplicatePhonesJsonKey] = duplicatePhones
			return http.StatusOK, body
		}()

		if err := writeJsonResponse(w, statusCode, body); err != nil {
			log.WithError(err).Info("failed to write body")
		}
	}
}

func (s *Server) getHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithFields(logrus.Fields{
			"path":       path,
			"request_id": RequestIdFromContext(r.Context()),
		})

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			model, err := newReadRequestFromHttpContext(r)
			if err != nil {
				return handleMutationError(err)
			}

			phones, err := s.service.GetPhones(ctx, model.File)
			if errors.Is(err, document.ErrNotConfigured) {
				log.Warn("document store is not configured")
				return http.StatusInternalServerError, GenericApiResponseBody{
					phonesJsonKey: []string{},
					errorJsonKey:  notConfiguredMessage,
				}
			} else if err != nil {
				return handleMutationError(err)
			}

			if phones == nil {
				phones = []string{}
			}
			return http.StatusOK, GenericApiResponseBody{
				phonesJsonKey: phones,
			}
		}()

		if err := writeJsonResponse(w, statusCode, body); err != nil {
			log.WithError(err).Info("failed to write body")
		}
	}
}

// GetHandlers returns the API handlers keyed by path. Each handler answers
// CORS preflight requests and rejects methods the route doesn't support.
func (s *Server) GetHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		AddPath:     withAllowedMethods(s.addHandler(AddPath), http.MethodPost),
		BulkAddPath: withAllowedMethods(s.bulkAddHandler(BulkAddPath), http.MethodPost),
		GetPath:     withAllowedMethods(s.getHandler(GetPath), http.MethodGet, http.MethodPost),
	}
}
