package bankwest

import (
	"context"
	"errors"
	"fmt"

	"bankwest-session/internal/components/assert"
	"bankwest-session/internal/components/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_classifier_classify = "classifier.classify"
)

var tracer = otel.Tracer("bankwest-session/scrapers/bankwest")

// Result is what a page was recognized as, only the fields belonging to
// Shape are filled in.
type Result struct {
	Shape        Shape
	Accounts     []Account
	Transactions []Transaction
	// Messages holds the validation messages of a re-shown search form.
	Messages []string
}

// Classifier recognizes pages. Classify tries each accepted shape in order
// and returns the first that matches, if none do it returns an
// *UnexpectedPageError. The misses it carries are text only so that an
// unexpected page never reads as ErrNoMatch to an outer classifier.
type Classifier interface {
	Classify(ctx context.Context, page *Page, accepted ...Shape) (Result, error)
}

// Matcher recognizes and parses a single shape. It returns an error wrapping
// ErrNoMatch when the page is not of its shape. Any other error means the
// page is of its shape but cannot be used, this stops classification.
type Matcher func(ctx context.Context, page *Page) (Result, error)

// ShapeClassifier is the ordered dispatch over one Matcher per shape.
type ShapeClassifier struct {
	matchers map[Shape]Matcher
	tel      telemetry.API
}

// NewClassifier returns a ShapeClassifier that knows every shape the bank
// responds with.
func NewClassifier(tel telemetry.API) ShapeClassifier {
	return NewShapeClassifier(tel, map[Shape]Matcher{
		ShapeLogin:             matchLogin,
		ShapeLogout:            matchLogout,
		ShapeAccounts:          matchAccounts,
		ShapeTransactionSearch: matchTransactionSearch,
		ShapeTransactionExport: matchTransactionExport,
	})
}

func NewShapeClassifier(tel telemetry.API, matchers map[Shape]Matcher) ShapeClassifier {
	assert.NotNil(tel)
	return ShapeClassifier{
		matchers: matchers,
		tel:      telemetry.NewScopedAPI("bankwest_classifier", tel),
	}
}

func (c ShapeClassifier) Classify(ctx context.Context, page *Page, accepted ...Shape) (Result, error) {
	ctx, span := tracer.Start(ctx, "Classify")
	defer span.End()
	span.SetAttributes(attribute.String("page", page.String()))

	var misses []string
	for _, shape := range accepted {
		match, ok := c.matchers[shape]
		if !ok {
			misses = append(misses, fmt.Sprintf("%s: no matcher registered", shape))
			continue
		}

		result, err := match(ctx, page)
		if errors.Is(err, ErrNoMatch) {
			misses = append(misses, fmt.Sprintf("%s: %v", shape, err))
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "matched page reports a failure")
			return Result{}, err
		}

		result.Shape = shape
		span.SetAttributes(attribute.String("shape", shape.String()))
		c.tel.ReportDebug(report_classifier_classify, page.String(), shape.String())
		return result, nil
	}

	err := &UnexpectedPageError{
		Accepted: accepted,
		Status:   page.Status,
		Misses:   misses,
	}
	if page.Url != nil {
		err.Url = page.Url.String()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "no shape matched")
	c.tel.ReportWarning(report_classifier_classify, err)
	return Result{}, err
}
