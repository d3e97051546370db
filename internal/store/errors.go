package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"syscall"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	// ErrNotFound reports that the looked-up row does not exist. Not retryable.
	ErrNotFound = errors.New("not found")
	// ErrReferentialIntegrity reports a write that references a missing parent row. Not retryable.
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	// ErrUnavailable reports a transient storage failure such as a refused
	// connection or an exhausted pool. Callers may retry.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrCorruptFindings reports stored findings that fail validation on read.
	ErrCorruptFindings = errors.New("corrupt findings")
	// ErrInvalidFindings reports findings rejected before they are written. Not retryable.
	ErrInvalidFindings = errors.New("invalid findings")
)

const pqForeignKeyViolation = "23503"

var (
	metricsOnce  sync.Once
	errorCounter otelmetric.Int64Counter
)

func initStoreMetrics() {
	var err error
	errorCounter, err = otel.Meter("tosclarity/store").Int64Counter(
		"tosclarity_store_errors_total",
		otelmetric.WithDescription("Store operation failures by operation and kind"),
	)
	if err != nil {
		log.Printf("store metrics init: tosclarity_store_errors_total: %v", err)
	}
}

func countError(op, kind string) {
	metricsOnce.Do(initStoreMetrics)
	if errorCounter == nil {
		return
	}
	errorCounter.Add(context.Background(), 1, otelmetric.WithAttributes(
		attribute.String("op", op), attribute.String("kind", kind)))
}

// IsRetryable reports whether err is a transient infrastructure failure.
func IsRetryable(err error) bool { return errors.Is(err, ErrUnavailable) }

// classify maps a driver error onto the store's error kinds, keeping the
// original error in the chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrNotFound, ErrReferentialIntegrity, ErrUnavailable, ErrCorruptFindings} {
		if errors.Is(err, known) {
			countError(op, kindLabel(known))
			return err
		}
	}
	kind := kindOf(err)
	if kind == nil {
		countError(op, "other")
		return fmt.Errorf("%s: %w", op, err)
	}
	countError(op, kindLabel(kind))
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

func kindOf(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == pqForeignKeyViolation {
			return ErrReferentialIntegrity
		}
		switch pqErr.Code.Class() {
		case "08", "53":
			// connection_exception, insufficient_resources (includes too_many_connections)
			return ErrUnavailable
		case "57":
			switch pqErr.Code {
			case "57P01", "57P02", "57P03":
				return ErrUnavailable
			}
		}
		return nil
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return ErrUnavailable
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrUnavailable
	}
	return nil
}

func kindLabel(kind error) string {
	switch kind {
	case ErrNotFound:
		return "not_found"
	case ErrReferentialIntegrity:
		return "referential_integrity"
	case ErrUnavailable:
		return "unavailable"
	case ErrCorruptFindings:
		return "corrupt_findings"
	case ErrInvalidFindings:
		return "invalid_findings"
	}
	return "other"
}
