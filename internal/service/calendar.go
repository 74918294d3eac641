package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/you/go-flight-calendar/internal/metrics"
	"github.com/you/go-flight-calendar/internal/providers"
)

// Options tune a single Build call.
type Options struct {
	// Partial keeps failed days in the report instead of failing it.
	Partial bool
	// OnResult, when set, is called from worker goroutines as each day
	// completes, in completion order.
	OnResult func(DayResult)
}

type CalendarService struct {
	log      *zap.Logger
	provider providers.FareProvider
	executor *Executor
	timeout  time.Duration
	metrics  *metrics.Metrics
}

func NewCalendarService(log *zap.Logger, provider providers.FareProvider, concurrency int, timeout time.Duration, m *metrics.Metrics) *CalendarService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CalendarService{
		log:      log,
		provider: provider,
		executor: NewExecutor(concurrency),
		timeout:  timeout,
		metrics:  m,
	}
}

// Build prices every day of c.Month and returns them in calendar order.
func (s *CalendarService) Build(ctx context.Context, c SearchCriteria, opts Options) (CalendarReport, error) {
	const op = "service.Build"
	ctx, span := otel.Tracer("calendar/service").Start(ctx, op)
	defer span.End()
	span.SetAttributes(
		attribute.String("calendar.origin", c.Origin),
		attribute.String("calendar.destination", c.Destination),
		attribute.String("calendar.month", c.Month.Format(MonthLayout)),
		attribute.Bool("calendar.partial", opts.Partial),
	)

	logger := s.log.With(
		zap.String("op", op),
		zap.String("origin", c.Origin),
		zap.String("destination", c.Destination),
		zap.String("month", c.Month.Format(MonthLayout)),
	)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	days := DaysIn(c.Month)
	agg := NewAggregator(days)

	err := s.executor.Run(ctx, len(days), func(ctx context.Context, i int) error {
		res := s.fetchDay(ctx, logger, c, days[i])
		if err := agg.Add(res); err != nil {
			return err
		}
		if opts.OnResult != nil {
			opts.OnResult(res)
		}
		if res.Status == StatusFailed && !opts.Partial {
			return &DayError{Date: res.Date, Err: res.Err}
		}
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, providers.ErrUpstream) {
			err = ctxErr
		}
		logger.Warn("calendar build failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "calendar build failed")
		s.metrics.ObserveReport("error")
		return CalendarReport{}, err
	}

	results, err := agg.Report(!opts.Partial)
	if err != nil {
		logger.Warn("calendar aggregation failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "calendar aggregation failed")
		s.metrics.ObserveReport("error")
		return CalendarReport{}, err
	}

	report := CalendarReport{Criteria: c, Days: results}
	failed := report.Failed()
	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	s.metrics.ObserveReport(result)
	span.SetAttributes(attribute.Int("calendar.days", len(results)), attribute.Int("calendar.failed_days", failed))
	span.SetStatus(otelcodes.Ok, "ok")
	logger.Info("calendar built", zap.Int("days", len(results)), zap.Int("failed_days", failed))
	return report, nil
}

func (s *CalendarService) fetchDay(ctx context.Context, logger *zap.Logger, c SearchCriteria, day time.Time) DayResult {
	date := day.Format(DateLayout)
	ctx, span := otel.Tracer("calendar/service").Start(ctx, "service.fetchDay",
		trace.WithAttributes(attribute.String("calendar.date", date)))
	defer span.End()

	done := s.metrics.StartFetch()

	resp, err := s.provider.Lookup(ctx, c.DayQuery(day))
	if err != nil {
		done(StatusFailed.String())
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "lookup failed")
		if ctx.Err() == nil {
			logger.Warn("day lookup failed", zap.String("date", date), zap.Error(err))
		}
		return DayResult{Date: day, Status: StatusFailed, Err: err}
	}

	price, ok := providers.SelectPrice(resp)
	if !ok {
		done(StatusUnavailable.String())
		logger.Debug("no offers for day", zap.String("date", date))
		return DayResult{Date: day, Status: StatusUnavailable}
	}
	done(StatusOK.String())
	return DayResult{Date: day, Price: &price, Status: StatusOK}
}
