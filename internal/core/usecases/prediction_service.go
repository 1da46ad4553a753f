package usecases

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/mjashworth/priceframe/internal/core/domain"
)

// residualScale normalizes price residuals before squaring so the
// quality score is comparable across cheap and expensive areas.
const residualScale = 100000.0

// lowConfidenceThreshold marks a fit whose mean normalized squared
// residual suggests the linear model explains little of the data.
const lowConfidenceThreshold = 1.0

// Prediction is the outcome of fitting a linear model on the design
// matrix around a query point and evaluating it at that point.
type Prediction struct {
	Price float64 `json:"price"`
	// MeanSquaredResidual is the in-sample mean of ((fitted-actual)/1e5)^2.
	MeanSquaredResidual float64 `json:"mean_squared_residual"`
	SampleSize          int     `json:"sample_size"`
	LowConfidence       bool    `json:"low_confidence"`
}

// PredictionService estimates a sale price for a query point from the
// transactions surrounding it.
type PredictionService struct {
	features *FeatureService
}

// NewPredictionService creates a new PredictionService.
func NewPredictionService(features *FeatureService) *PredictionService {
	return &PredictionService{features: features}
}

// Predict assembles the design matrix for the request, fits an
// intercept-free least-squares model and evaluates it at the query row.
// The fit uses the minimum-norm solution, so it stays defined even when
// the surrounding box holds fewer rows than there are feature columns.
func (s *PredictionService) Predict(ctx context.Context, req FeatureRequest) (*Prediction, error) {
	dm, err := s.features.Build(ctx, req)
	if err != nil {
		return nil, err
	}

	beta, err := solveLeastSquares(dm)
	if err != nil {
		return nil, err
	}

	price := dot(dm.QueryRow, beta)

	var sum float64
	for i, row := range dm.X {
		r := (dot(row, beta) - dm.Y[i]) / residualScale
		sum += r * r
	}
	msr := sum / float64(len(dm.X))

	return &Prediction{
		Price:               price,
		MeanSquaredResidual: msr,
		SampleSize:          len(dm.X),
		LowConfidence:       msr > lowConfidenceThreshold,
	}, nil
}

// solveLeastSquares returns the minimum-norm least-squares coefficients
// for X beta = y via a thin SVD.
func solveLeastSquares(dm *domain.DesignMatrix) ([]float64, error) {
	n, p := len(dm.X), len(dm.Columns)

	x := mat.NewDense(n, p, nil)
	for i, row := range dm.X {
		x.SetRow(i, row)
	}
	y := mat.NewVecDense(n, dm.Y)

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, fmt.Errorf("design matrix factorization failed (%dx%d)", n, p)
	}

	rank := svd.Rank(1e-10)
	if rank == 0 {
		return nil, fmt.Errorf("design matrix has rank zero (%dx%d)", n, p)
	}

	var beta mat.VecDense
	svd.SolveVecTo(&beta, y, rank)
	return beta.RawVector().Data, nil
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
