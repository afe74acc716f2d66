package causal

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	apperrors "tremor/internal/errors"
)

// olsFit is one simple regression y = intercept + coefficient*x with
// heteroskedasticity-robust (HC1) standard errors and Student's-t inference.
type olsFit struct {
	Coefficient     float64
	StdError        float64
	TStatistic      float64
	PValue          float64
	RSquared        float64
	CILower         float64
	CIUpper         float64
	Intercept       float64
	InterceptPValue float64
	N               int
}

// fitOLSRobust runs OLS of y on x with an intercept and HC1 robust standard
// errors. significance sets the confidence-interval coverage (1-significance).
func fitOLSRobust(x, y []float64, significance float64) (*olsFit, error) {
	n := len(x)
	if n != len(y) || n < 3 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeData,
			"regression needs at least 3 paired observations", nil)
	}

	meanX := stat.Mean(x, nil)
	meanY := stat.Mean(y, nil)

	sxx := 0.0
	sxy := 0.0
	for i := range x {
		dx := x[i] - meanX
		sxx += dx * dx
		sxy += dx * (y[i] - meanY)
	}
	if sxx == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeData,
			"regressor has zero variance", nil)
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	// Residuals, R² and the HC1 sandwich. For X = [1 x], (X'X)^-1 has a
	// closed form with determinant n*sxx.
	sumX := meanX * float64(n)
	sumX2 := sxx + meanX*sumX
	det := float64(n) * sxx

	inv00 := sumX2 / det
	inv01 := -sumX / det
	inv11 := float64(n) / det

	var sse, sst float64
	var m00, m01, m11 float64
	for i := range x {
		residual := y[i] - intercept - slope*x[i]
		e2 := residual * residual
		sse += e2
		dy := y[i] - meanY
		sst += dy * dy
		m00 += e2
		m01 += e2 * x[i]
		m11 += e2 * x[i] * x[i]
	}

	rSquared := 0.0
	if sst > 0 {
		rSquared = 1 - sse/sst
	}

	// Cov = (X'X)^-1 M (X'X)^-1 scaled by n/(n-2) for HC1.
	scale := float64(n) / float64(n-2)
	cov00 := scale * (inv00*(inv00*m00+inv01*m01) + inv01*(inv00*m01+inv01*m11))
	cov11 := scale * (inv01*(inv01*m00+inv11*m01) + inv11*(inv01*m01+inv11*m11))

	seIntercept := math.Sqrt(cov00)
	seSlope := math.Sqrt(cov11)
	if seSlope == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeData,
			"degenerate regression: zero robust standard error", nil)
	}

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	tSlope := slope / seSlope
	pSlope := 2 * tDist.Survival(math.Abs(tSlope))

	interceptP := 1.0
	if seIntercept > 0 {
		interceptP = 2 * tDist.Survival(math.Abs(intercept/seIntercept))
	}

	tCrit := tDist.Quantile(1 - significance/2)

	return &olsFit{
		Coefficient:     slope,
		StdError:        seSlope,
		TStatistic:      tSlope,
		PValue:          pSlope,
		RSquared:        rSquared,
		CILower:         slope - tCrit*seSlope,
		CIUpper:         slope + tCrit*seSlope,
		Intercept:       intercept,
		InterceptPValue: interceptP,
		N:               n,
	}, nil
}

// meanZeroTest is an intercept-only regression: does the sample mean differ
// from zero? Returns ok=false when the sample is degenerate.
func meanZeroTest(y []float64) (mean, pValue float64, ok bool) {
	n := len(y)
	if n < 2 {
		return 0, 0, false
	}

	mean = stat.Mean(y, nil)
	sd := stat.StdDev(y, nil)
	if sd == 0 {
		return 0, 0, false
	}

	se := sd / math.Sqrt(float64(n))
	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	pValue = 2 * tDist.Survival(math.Abs(mean/se))
	return mean, pValue, true
}
