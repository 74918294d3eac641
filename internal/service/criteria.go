package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/you/go-flight-calendar/internal/providers"
)

var (
	ErrMissingParameter = errors.New("from and to required")
	ErrInvalidCriteria  = errors.New("invalid search criteria")
)

// SearchCriteria describes one calendar search. Month is the first day of
// the target month in UTC.
type SearchCriteria struct {
	Origin      string    `json:"from" validate:"required,printascii,max=64"`
	Destination string    `json:"to" validate:"required,printascii,max=64"`
	Month       time.Time `json:"month" validate:"required"`
	Currency    string    `json:"currency" validate:"required,len=3,alpha"`
	Market      string    `json:"gl" validate:"required,len=2,alpha"`
}

// CriteriaInput is the raw, possibly partial request.
type CriteriaInput struct {
	From     string
	To       string
	Month    string
	Currency string
	Market   string
}

type Defaults struct {
	Currency string
	Market   string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// BuildCriteria normalizes and validates a request. An empty month means
// the month containing now; empty currency and market fall back to d.
func BuildCriteria(in CriteriaInput, d Defaults, now time.Time) (SearchCriteria, error) {
	// airport codes and location ids (/m/04jpl) go to the provider as given
	from := strings.TrimSpace(in.From)
	to := strings.TrimSpace(in.To)
	if from == "" || to == "" {
		return SearchCriteria{}, ErrMissingParameter
	}

	month := CurrentMonth(now)
	if raw := strings.TrimSpace(in.Month); raw != "" {
		m, err := ParseMonth(raw)
		if err != nil {
			return SearchCriteria{}, err
		}
		month = m
	}

	currency := strings.TrimSpace(in.Currency)
	if currency == "" {
		currency = d.Currency
	}
	market := strings.TrimSpace(in.Market)
	if market == "" {
		market = d.Market
	}

	c := SearchCriteria{
		Origin:      from,
		Destination: to,
		Month:       month,
		Currency:    strings.ToUpper(currency),
		Market:      strings.ToLower(market),
	}
	if err := validate.Struct(c); err != nil {
		return SearchCriteria{}, describeValidation(err)
	}
	return c, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "len":
			parts = append(parts, fmt.Sprintf("%s must be %s characters", fe.Field(), fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "alpha", "printascii":
			parts = append(parts, fe.Field()+" contains invalid characters")
		default:
			parts = append(parts, fe.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidCriteria, strings.Join(parts, "; "))
}

// DayQuery derives the provider query for one date of the month.
func (c SearchCriteria) DayQuery(day time.Time) providers.DayQuery {
	return providers.DayQuery{
		Origin:      c.Origin,
		Destination: c.Destination,
		Date:        day,
		Currency:    c.Currency,
		Market:      c.Market,
	}
}
