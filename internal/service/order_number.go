package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/ponto/internal/domain"
	"github.com/dukerupert/ponto/internal/telemetry"
)

const (
	// DefaultOrderNumberPrefix is the leading segment of every order number.
	DefaultOrderNumberPrefix = "PT"

	// DefaultOrderNumberRetries bounds reallocation after a unique violation.
	DefaultOrderNumberRetries = 5

	orderSequenceDigits = 6
)

// OrderNumberAllocator hands out <prefix>-<year>-<6 digit sequence> numbers.
// Two concurrent allocations can read the same last number; the unique
// constraint on orders.order_number rejects the second insert and Allocate
// retries with a fresh number.
type OrderNumberAllocator struct {
	store      OrderStore
	prefix     string
	maxRetries int
	now        func() time.Time
	logger     *slog.Logger
	metrics    *telemetry.BusinessMetrics
}

// NewOrderNumberAllocator creates an allocator. An empty prefix or a
// non-positive retry count use the defaults.
func NewOrderNumberAllocator(store OrderStore, prefix string, maxRetries int, logger *slog.Logger, metrics *telemetry.BusinessMetrics) *OrderNumberAllocator {
	if prefix == "" {
		prefix = DefaultOrderNumberPrefix
	}
	if maxRetries <= 0 {
		maxRetries = DefaultOrderNumberRetries
	}
	return &OrderNumberAllocator{
		store:      store,
		prefix:     prefix,
		maxRetries: maxRetries,
		now:        time.Now,
		logger:     logger,
		metrics:    metrics,
	}
}

// Next returns the number following the last stored one for the current year.
func (a *OrderNumberAllocator) Next(ctx context.Context) (string, error) {
	const op = "orderNumber.next"

	yearPrefix := fmt.Sprintf("%s-%d-", a.prefix, a.now().UTC().Year())

	last, err := a.store.LastOrderNumber(ctx, yearPrefix)
	if err != nil {
		return "", domain.Internal(err, op, "failed to read last order number")
	}

	seq := 0
	if last != "" {
		suffix := strings.TrimPrefix(last, yearPrefix)
		seq, err = strconv.Atoi(suffix)
		if err != nil || seq < 0 || suffix == last {
			return "", domain.Internal(fmt.Errorf("malformed order number %q", last), op, "failed to parse last order number")
		}
	}

	return fmt.Sprintf("%s%0*d", yearPrefix, orderSequenceDigits, seq+1), nil
}

// Allocate calls insert with successive numbers until it succeeds or
// returns an error other than domain.ErrOrderNumberTaken. It gives up
// after maxRetries conflicts.
func (a *OrderNumberAllocator) Allocate(ctx context.Context, insert func(number string) error) (string, error) {
	const op = "orderNumber.allocate"

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		number, err := a.Next(ctx)
		if err != nil {
			return "", err
		}

		err = insert(number)
		if err == nil {
			return number, nil
		}
		if !errors.Is(err, domain.ErrOrderNumberTaken) {
			return "", err
		}

		a.metrics.RecordOrderNumberConflict()
		a.logger.WarnContext(ctx, "order number taken, reallocating",
			"order_number", number,
			"attempt", attempt,
		)
	}

	return "", domain.Internal(domain.ErrOrderNumberTaken, op,
		fmt.Sprintf("could not allocate an order number after %d attempts", a.maxRetries))
}
