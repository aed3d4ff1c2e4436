package phonelist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/code-payments/phonelist-server/pkg/metrics"
	"github.com/code-payments/phonelist-server/pkg/phone"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	"github.com/code-payments/phonelist-server/pkg/retry"
	"github.com/code-payments/phonelist-server/pkg/retry/backoff"
)

const (
	metricsStructName = "phonelist.service"

	mutationEventName          = "PhoneListMutation"
	mutationDurationMetricName = "PhoneList/MutationDuration"
	mutationAttemptsMetricName = "PhoneList/MutationAttempts"

	operationAdd     = "add"
	operationBulkAdd = "bulk_add"
)

// Outcome is the result of a successful mutation
type Outcome struct {
	// Added are the phone numbers persisted by the mutation
	Added []string

	// Duplicates are the phone numbers that were already in the list
	Duplicates []string

	// Total is the size of the list after the mutation
	Total int

	// Attempts is the number of read-merge-write cycles used
	Attempts uint
}

// Service appends phone numbers to named lists using optimistic concurrency
// against a document.Store. There is no in-process locking, so any number of
// Service instances may mutate the same list.
type Service struct {
	log   *logrus.Entry
	conf  *conf
	store document.Store
}

func NewService(store document.Store, configProvider ConfigProvider) *Service {
	return &Service{
		log:   logrus.StandardLogger().WithField("type", "phonelist/service"),
		conf:  configProvider(),
		store: store,
	}
}

// AddPhone appends a single phone number to a list. ErrDuplicatePhone is
// returned if it's already present.
func (s *Service) AddPhone(ctx context.Context, name, rawPhone string) (*Outcome, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "AddPhone")
	tracer.AddAttribute("document", name)
	defer tracer.End()

	outcome, err := func() (*Outcome, error) {
		if err := document.ValidateName(name); err != nil {
			return nil, err
		}

		normalized, err := phone.Normalize(rawPhone)
		if err != nil {
			return nil, err
		}

		return s.mutate(
			ctx,
			operationAdd,
			name,
			[]string{normalized},
			fmt.Sprintf("Add phone %s to %s", normalized, name),
		)
	}()
	if err != nil {
		tracer.OnError(err)
	}
	return outcome, err
}

// AddPhones appends a batch of phone numbers to a list. Numbers already present
// are reported as duplicates rather than failing the batch. If any number is
// invalid, the batch is rejected with a *phone.BatchError listing all of them.
func (s *Service) AddPhones(ctx context.Context, name string, rawPhones []string) (*Outcome, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "AddPhones")
	tracer.AddAttributes(map[string]interface{}{
		"document": name,
		"count":    len(rawPhones),
	})
	defer tracer.End()

	outcome, err := func() (*Outcome, error) {
		if err := document.ValidateName(name); err != nil {
			return nil, err
		}

		normalized, err := phone.NormalizeBatch(rawPhones)
		if err != nil {
			return nil, err
		}

		return s.mutate(
			ctx,
			operationBulkAdd,
			name,
			normalized,
			"",
		)
	}()
	if err != nil {
		tracer.OnError(err)
	}
	return outcome, err
}

// GetPhones returns the phone numbers in a list. A list that doesn't exist is
// empty. Store failures also yield an empty list, with the exception of
// missing store configuration which is returned as document.ErrNotConfigured.
func (s *Service) GetPhones(ctx context.Context, name string) ([]string, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetPhones")
	defer tracer.End()

	if err := document.ValidateName(name); err != nil {
		tracer.OnError(err)
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"method":   "GetPhones",
		"document": name,
	})

	ctx, cancel := context.WithTimeout(ctx, s.conf.mutationTimeout.Get(ctx))
	defer cancel()

	doc, err := s.store.Read(ctx, name)
	if errors.Is(err, document.ErrNotConfigured) {
		tracer.OnError(err)
		return nil, err
	} else if err != nil {
		log.WithError(err).Warn("failure reading document, returning empty list")
		tracer.OnError(err)
		return []string{}, nil
	}

	log.WithField("total", len(doc.Items)).Debug("read document")
	return doc.Items, nil
}

func (s *Service) mutate(ctx context.Context, operation, name string, candidates []string, description string) (*Outcome, error) {
	log := s.log.WithFields(logrus.Fields{
		"method":    "mutate",
		"operation": operation,
		"document":  name,
	})

	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.conf.mutationTimeout.Get(ctx))
	defer cancel()

	var outcome *Outcome
	attempts, err := retry.Retry(
		ctx,
		func(ctx context.Context, attempt uint) error {
			log := log.WithField("attempt", attempt)

			doc, err := s.store.Read(ctx, name)
			if err != nil {
				return err
			}

			merged := Merge(doc.Items, candidates)
			if operation == operationAdd && len(merged.Duplicates) > 0 {
				return ErrDuplicatePhone
			}

			outcome = &Outcome{
				Added:      merged.Added,
				Duplicates: merged.Duplicates,
				Total:      len(merged.Merged),
				Attempts:   attempt,
			}

			if !merged.HasChanges() {
				log.Debug("no new phone numbers, skipping write")
				return nil
			}

			message := description
			if len(message) == 0 {
				message = fmt.Sprintf("Bulk add %d phones to %s", len(merged.Added), name)
			}

			_, err = s.store.Write(ctx, name, merged.Merged, doc.Version, message)
			if errors.Is(err, document.ErrVersionConflict) {
				metrics.RecordVersionConflict()
				log.WithError(err).Info("version conflict writing document")
			}
			return err
		},
		retry.RetriableErrors(document.ErrVersionConflict),
		retry.Limit(uint(s.conf.maxAttempts.Get(ctx))),
		retry.OnRetry(func(attempts uint, err error) {
			log.WithField("attempt", attempts).Info("retrying after conflict")
		}),
		retry.Backoff(backoff.Linear(s.conf.baseBackoff.Get(ctx)), s.conf.maxBackoff.Get(ctx)),
	)

	err = s.classifyError(ctx, err)
	s.recordOutcome(ctx, log, operation, name, attempts, time.Since(start), outcome, err)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *Service) classifyError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDuplicatePhone):
		return err
	case ctx.Err() != nil:
		return ErrTimeout
	case errors.Is(err, document.ErrVersionConflict):
		return ErrRetryExhausted
	default:
		return err
	}
}

func (s *Service) recordOutcome(ctx context.Context, log *logrus.Entry, operation, name string, attempts uint, duration time.Duration, outcome *Outcome, err error) {
	var status string
	var added int
	switch {
	case err == nil:
		status = "success"
		added = len(outcome.Added)
		log.WithFields(logrus.Fields{
			"added":      len(outcome.Added),
			"duplicates": len(outcome.Duplicates),
			"total":      outcome.Total,
			"attempts":   attempts,
		}).Info("phone list updated")
	case err == ErrDuplicatePhone:
		status = "duplicate"
	case err == ErrRetryExhausted:
		status = "retry_exhausted"
		log.WithField("attempts", attempts).Warn("gave up updating phone list after repeated conflicts")
	case err == ErrTimeout:
		status = "timeout"
		log.WithField("attempts", attempts).Warn("timed out updating phone list")
	case errors.Is(err, document.ErrNotConfigured):
		status = "not_configured"
		log.Warn("document store is not configured")
	default:
		status = "store_error"
		log.WithError(err).Warn("failure updating phone list")
	}

	metrics.RecordMutation(operation, status, attempts, added)
	metrics.RecordDuration(ctx, mutationDurationMetricName, duration)
	metrics.RecordCount(ctx, mutationAttemptsMetricName, uint64(attempts))
	metrics.RecordEvent(ctx, mutationEventName, map[string]interface{}{
		"operation": operation,
		"document":  name,
		"outcome":   status,
		"attempts":  attempts,
		"added":     added,
	})
}
