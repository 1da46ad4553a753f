package http

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mjashworth/priceframe/internal/core/domain"
	"github.com/mjashworth/priceframe/internal/core/usecases"
	"github.com/mjashworth/priceframe/internal/pkg/metrics"
)

const dateLayout = "2006-01-02"

// TransactionsResponse wraps a range query result.
type TransactionsResponse struct {
	Count        int                        `json:"count"`
	Cached       bool                       `json:"cached"`
	Transactions []domain.TransactionRecord `json:"transactions"`
}

// parseQueryRange builds a QueryRange from query parameters. Exactly one of
// the three shapes must be present: area_type+area_name, outcode, or
// lat+lon+box_size.
func parseQueryRange(c *fiber.Ctx) (domain.QueryRange, error) {
	start, err := parseDate(c.Query("start_date"))
	if err != nil {
		return domain.QueryRange{}, errors.New("start_date must be YYYY-MM-DD")
	}
	end, err := parseDate(c.Query("end_date"))
	if err != nil {
		return domain.QueryRange{}, errors.New("end_date must be YYYY-MM-DD")
	}

	areaType := c.Query("area_type")
	areaName := c.Query("area_name")
	outcode := c.Query("outcode")
	boxSize := c.QueryFloat("box_size", 0)

	switch {
	case areaType != "" || areaName != "":
		if areaType == "" || areaName == "" {
			return domain.QueryRange{}, errors.New("area_type and area_name must be given together")
		}
		return domain.NewAreaRange(domain.AreaType(areaType), strings.ToUpper(areaName), start, end), nil
	case outcode != "":
		return domain.NewOutcodeRange(strings.ToUpper(outcode), start, end), nil
	case boxSize > 0:
		return domain.NewBoxRange(c.QueryFloat("lat", 0), c.QueryFloat("lon", 0), boxSize, start, end), nil
	}
	return domain.QueryRange{}, errors.New("one of area_type+area_name, outcode, or lat+lon+box_size is required")
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("missing")
	}
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// domainError maps domain sentinel errors onto API error responses.
func domainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrEmptyQueryRegion):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrExternalFetch):
		return errBadGateway(c, err.Error())
	case errors.Is(err, domain.ErrCorruptExtract):
		return errInternal(c, err.Error())
	}
	return errBadRequest(c, err.Error())
}

// TransactionsHandler answers a range query over the transaction history.
func TransactionsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r, err := parseQueryRange(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		rows, cached, err := deps.Fetcher.Fetch(c.Context(), r)
		if err != nil {
			return domainError(c, err)
		}
		if cached {
			metrics.ExtractHits.Inc()
		} else {
			metrics.ExtractMisses.Inc()
		}
		if rows == nil {
			rows = []domain.TransactionRecord{}
		}

		return c.JSON(TransactionsResponse{
			Count:        len(rows),
			Cached:       cached,
			Transactions: rows,
		})
	}
}

// parseFeatureRequest reads the shared parameter set of the features and
// predict endpoints.
func parseFeatureRequest(c *fiber.Ctx) (usecases.FeatureRequest, error) {
	var req usecases.FeatureRequest

	d, err := parseDate(c.Query("date"))
	if err != nil {
		return req, errors.New("date must be YYYY-MM-DD")
	}

	req = usecases.FeatureRequest{
		Lat:          c.QueryFloat("lat", 0),
		Lon:          c.QueryFloat("lon", 0),
		Date:         d,
		PropertyType: domain.PropertyType(c.Query("property_type")),
		BoxSize:      c.QueryFloat("box_size", 0.02),
		Radius:       c.QueryFloat("radius", 0.01),
	}
	if categories := c.Query("categories"); categories != "" {
		req.Categories = strings.Split(categories, ",")
	}

	if !req.PropertyType.Valid() {
		return req, errors.New("property_type must be one of D, S, T, F, O")
	}
	if req.BoxSize <= 0 || req.Radius <= 0 {
		return req, errors.New("box_size and radius must be positive")
	}
	return req, nil
}

// FeaturesHandler assembles and returns the design matrix for a query point.
func FeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseFeatureRequest(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		dm, err := deps.Features.Build(c.Context(), req)
		if err != nil {
			return domainError(c, err)
		}

		return c.JSON(dm)
	}
}

// PredictHandler fits a model around the query point and returns its
// estimated price.
func PredictHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, err := parseFeatureRequest(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		pred, err := deps.Predictions.Predict(c.Context(), req)
		if err != nil {
			return domainError(c, err)
		}

		return c.JSON(pred)
	}
}

// PropertyTypesHandler lists the known property classifications.
func PropertyTypesHandler() fiber.Handler {
	type entry struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}
	var types []entry
	for _, p := range domain.PropertyTypes {
		types = append(types, entry{Code: string(p), Name: p.DisplayName()})
	}

	return func(c *fiber.Ctx) error {
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(types)
	}
}
