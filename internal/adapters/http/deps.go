package http

import (
	"github.com/mjashworth/priceframe/internal/adapters/postgres"
	"github.com/mjashworth/priceframe/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Fetcher     *usecases.FetchService
	Features    *usecases.FeatureService
	Predictions *usecases.PredictionService
	DB          *postgres.DB
}
