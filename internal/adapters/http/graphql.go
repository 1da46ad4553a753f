package http

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/mjashworth/priceframe/internal/core/domain"
	"github.com/mjashworth/priceframe/internal/core/usecases"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	transactionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Transaction",
		Fields: graphql.Fields{
			"price":            &graphql.Field{Type: graphql.Int},
			"date_of_transfer": &graphql.Field{Type: graphql.String},
			"postcode":         &graphql.Field{Type: graphql.String},
			"property_type":    &graphql.Field{Type: graphql.String},
			"new_build_flag":   &graphql.Field{Type: graphql.String},
			"tenure_type":      &graphql.Field{Type: graphql.String},
			"locality":         &graphql.Field{Type: graphql.String},
			"town_city":        &graphql.Field{Type: graphql.String},
			"district":         &graphql.Field{Type: graphql.String},
			"county":           &graphql.Field{Type: graphql.String},
			"country":          &graphql.Field{Type: graphql.String},
			"latitude":         &graphql.Field{Type: graphql.Float},
			"longitude":        &graphql.Field{Type: graphql.Float},
		},
	})

	predictionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Prediction",
		Fields: graphql.Fields{
			"price":                 &graphql.Field{Type: graphql.Float},
			"mean_squared_residual": &graphql.Field{Type: graphql.Float},
			"sample_size":           &graphql.Field{Type: graphql.Int},
			"low_confidence":        &graphql.Field{Type: graphql.Boolean},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"transactions": &graphql.Field{
				Type:        graphql.NewList(transactionType),
				Description: "Transactions inside a coordinate box and date interval",
				Args: graphql.FieldConfigArgument{
					"lat":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":        &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"box_size":   &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.02},
					"start_date": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"end_date":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					start, err := gqlDate(p.Args["start_date"])
					if err != nil {
						return nil, err
					}
					end, err := gqlDate(p.Args["end_date"])
					if err != nil {
						return nil, err
					}
					r := domain.NewBoxRange(
						p.Args["lat"].(float64),
						p.Args["lon"].(float64),
						p.Args["box_size"].(float64),
						start, end,
					)
					rows, _, err := deps.Fetcher.Fetch(p.Context, r)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(rows))
					for _, rec := range rows {
						out = append(out, transactionMap(rec))
					}
					return out, nil
				},
			},
			"transactionsByArea": &graphql.Field{
				Type:        graphql.NewList(transactionType),
				Description: "Transactions in a named administrative area",
				Args: graphql.FieldConfigArgument{
					"area_type":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"area_name":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"start_date": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"end_date":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					start, err := gqlDate(p.Args["start_date"])
					if err != nil {
						return nil, err
					}
					end, err := gqlDate(p.Args["end_date"])
					if err != nil {
						return nil, err
					}
					r := domain.NewAreaRange(
						domain.AreaType(p.Args["area_type"].(string)),
						strings.ToUpper(p.Args["area_name"].(string)),
						start, end,
					)
					rows, _, err := deps.Fetcher.Fetch(p.Context, r)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]interface{}, 0, len(rows))
					for _, rec := range rows {
						out = append(out, transactionMap(rec))
					}
					return out, nil
				},
			},
			"predictPrice": &graphql.Field{
				Type:        predictionType,
				Description: "Estimate a sale price for a property at a location and date",
				Args: graphql.FieldConfigArgument{
					"lat":           &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":           &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"date":          &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"property_type": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"box_size":      &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.02},
					"radius":        &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.01},
					"categories":    &graphql.ArgumentConfig{Type: graphql.NewList(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					d, err := gqlDate(p.Args["date"])
					if err != nil {
						return nil, err
					}
					req := usecases.FeatureRequest{
						Lat:          p.Args["lat"].(float64),
						Lon:          p.Args["lon"].(float64),
						Date:         d,
						PropertyType: domain.PropertyType(p.Args["property_type"].(string)),
						BoxSize:      p.Args["box_size"].(float64),
						Radius:       p.Args["radius"].(float64),
					}
					if cats, ok := p.Args["categories"].([]interface{}); ok {
						for _, cat := range cats {
							if s, ok := cat.(string); ok {
								req.Categories = append(req.Categories, s)
							}
						}
					}
					return deps.Predictions.Predict(p.Context, req)
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

func gqlDate(arg interface{}) (time.Time, error) {
	s, ok := arg.(string)
	if !ok {
		return time.Time{}, errors.New("date argument must be a string")
	}
	d, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, errors.New("dates must be YYYY-MM-DD")
	}
	return d, nil
}

// transactionMap flattens a record for GraphQL field resolution.
func transactionMap(rec domain.TransactionRecord) map[string]interface{} {
	return map[string]interface{}{
		"price":            rec.Price,
		"date_of_transfer": rec.DateOfTransfer.Format(dateLayout),
		"postcode":         rec.Postcode,
		"property_type":    string(rec.PropertyType),
		"new_build_flag":   rec.NewBuildFlag,
		"tenure_type":      rec.TenureType,
		"locality":         rec.Locality,
		"town_city":        rec.TownCity,
		"district":         rec.District,
		"county":           rec.County,
		"country":          rec.Country,
		"latitude":         rec.Latitude,
		"longitude":        rec.Longitude,
	}
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
