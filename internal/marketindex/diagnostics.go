package marketindex

import (
	"math"
	"strings"
)

// residualEpsilon guards divisions in the influence statistics
const residualEpsilon = 1e-12

// ComputeDiagnostics runs the enabled outlier rules over the full record set
// and returns one flag per record, in input order.
//
// The distribution rule flags prices outside [Q1 - k*iqr, Q3 + k*iqr] with
// linearly interpolated quartiles. The regression-residual rule fits
// log(max(1, price)) against elapsed days and flags large studentized
// residuals (price deviation) and large Cook's distances (high influence).
// Raw leverage is reported for display but is never a flag criterion: a sale
// at the edge of the date range that tracks the trend is not an outlier.
func ComputeDiagnostics(records []SaleRecord, cfg Config) []DiagnosticFlag {
	flags := make([]DiagnosticFlag, len(records))
	for i, r := range records {
		flags[i].RecordID = r.ID
	}

	if cfg.UseIQR {
		applyIQRRule(records, flags, cfg.IQRMultiplier)
	}
	if cfg.UseRegressionOutliers {
		applyRegressionRule(records, flags)
	}

	for i := range flags {
		flags[i].Flagged = flags[i].IQROutlier || flags[i].PriceDeviation || flags[i].HighInfluence
		flags[i].Reason = flagReason(flags[i])
	}

	return flags
}

// applyIQRRule flags records whose price falls outside the interquartile
// bounds scaled by multiplier k
func applyIQRRule(records []SaleRecord, flags []DiagnosticFlag, k float64) {
	if len(records) == 0 {
		return
	}

	prices := make([]float64, len(records))
	for i, r := range records {
		prices[i] = r.SoldPrice
	}

	q1 := calculateQuantile(prices, 0.25)
	q3 := calculateQuantile(prices, 0.75)
	iqr := q3 - q1
	lo := q1 - k*iqr
	hi := q3 + k*iqr

	for i, p := range prices {
		if p < lo || p > hi {
			flags[i].IQROutlier = true
		}
	}
}

// applyRegressionRule fits log price against elapsed days and flags price
// deviations and high-influence observations. Skipped entirely below
// MinRecordsForRegression records.
func applyRegressionRule(records []SaleRecord, flags []DiagnosticFlag) {
	n := len(records)
	if n < MinRecordsForRegression {
		return
	}

	earliest := records[0].ContractDate
	for _, r := range records[1:] {
		if r.ContractDate.Before(earliest) {
			earliest = r.ContractDate
		}
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, r := range records {
		xs[i] = float64(daysBetween(r.ContractDate, earliest))
		ys[i] = math.Log(math.Max(1.0, r.SoldPrice))
	}

	// Normal equations for X = [1, x]
	var sumX, sumXX float64
	for _, x := range xs {
		sumX += x
		sumXX += x * x
	}
	xtx := mat2{float64(n), sumX, sumX, sumXX}
	inv := xtx.invertOrPseudo()

	var sumY, sumXY float64
	for i := range xs {
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
	}
	b0 := inv.a*sumY + inv.b*sumXY
	b1 := inv.c*sumY + inv.d*sumXY

	const p = 2 // regression parameters (intercept, slope)

	resid := make([]float64, n)
	var sse float64
	for i := range xs {
		resid[i] = ys[i] - (b0 + b1*xs[i])
		sse += resid[i] * resid[i]
	}

	denom := n - p
	if denom < 1 {
		denom = 1
	}
	mse := sse / float64(denom)

	residStd := calculatePopulationStdDev(resid)
	if residStd <= 0 {
		residStd = 1.0
	}

	cookThreshold := 4.0 / float64(n)

	for i := range xs {
		// Hat-matrix diagonal: x_i^T (X^T X)^-1 x_i
		h := inv.a + inv.b*xs[i] + inv.c*xs[i] + inv.d*xs[i]*xs[i]

		oneMinusH := 1 - h
		if oneMinusH < residualEpsilon {
			oneMinusH = residualEpsilon
		}
		cooks := (resid[i] * resid[i] / (p * (mse + residualEpsilon))) * (h / (oneMinusH * oneMinusH))

		flags[i].Leverage = h
		flags[i].CooksDistance = cooks
		flags[i].PriceDeviation = math.Abs(resid[i])/residStd > StudentizedResidualThreshold
		flags[i].HighInfluence = cooks > cookThreshold
	}
}

// flagReason composes the human-readable audit label from the triggered rules
func flagReason(f DiagnosticFlag) string {
	var reasons []string
	if f.IQROutlier {
		reasons = append(reasons, ReasonIQR)
	}
	if f.PriceDeviation {
		reasons = append(reasons, ReasonPriceDeviation)
	}
	if f.HighInfluence {
		reasons = append(reasons, ReasonCooksDistance)
	}
	return strings.Join(reasons, " + ")
}

// mat2 is a symmetric 2x2 matrix in row-major order
type mat2 struct {
	a, b, c, d float64
}

// invertOrPseudo inverts the matrix, falling back to the Moore-Penrose
// pseudo-inverse when the matrix is singular (degenerate when all contract
// dates coincide)
func (m mat2) invertOrPseudo() mat2 {
	det := m.a*m.d - m.b*m.c
	scale := math.Max(math.Abs(m.a), math.Max(math.Abs(m.b), math.Max(math.Abs(m.c), math.Abs(m.d))))
	if scale == 0 {
		return mat2{}
	}

	if math.Abs(det) > residualEpsilon*scale*scale {
		return mat2{m.d / det, -m.b / det, -m.c / det, m.a / det}
	}

	// Pseudo-inverse via the eigendecomposition of the symmetric matrix:
	// keep only eigenvalues distinguishable from zero
	tr := m.a + m.d
	disc := math.Sqrt((m.a-m.d)*(m.a-m.d) + 4*m.b*m.c)
	eigs := [2]float64{(tr + disc) / 2, (tr - disc) / 2}

	var out mat2
	for _, lambda := range eigs {
		if math.Abs(lambda) <= residualEpsilon*scale {
			continue
		}
		// Eigenvector for lambda
		var vx, vy float64
		if math.Abs(m.b) > residualEpsilon*scale {
			vx, vy = lambda-m.d, m.b
		} else if math.Abs(m.a-lambda) > residualEpsilon*scale {
			vx, vy = 0, 1
		} else {
			vx, vy = 1, 0
		}
		norm := math.Hypot(vx, vy)
		vx, vy = vx/norm, vy/norm

		out.a += vx * vx / lambda
		out.b += vx * vy / lambda
		out.c += vy * vx / lambda
		out.d += vy * vy / lambda
	}
	return out
}
