package deniable

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Size units
const (
	KiB = 1024
	MiB = 1024 * KiB
)

// DistributionKind identifies the family of a Distribution
type DistributionKind uint8

const (
	// LogNormal draws exp(N(μ, σ²)) with μ chosen so the mean is Mean
	LogNormal DistributionKind = iota + 1
	// Pareto draws Scale / U^(1/Alpha)
	Pareto
)

// String returns the name of the distribution family
func (k DistributionKind) String() string {
	switch k {
	case LogNormal:
		return "lognormal"
	case Pareto:
		return "pareto"
	default:
		return "unknown"
	}
}

// maxSampleAttempts bounds the re-sampling loop before clamping
const maxSampleAttempts = 100

// Distribution describes a bounded size distribution. Samples are drawn from
// a cryptographically secure source and re-drawn up to 100 times until they
// fall within [Min, Max]; the last draw is clamped.
type Distribution struct {
	Kind DistributionKind
	Min  int64
	Max  int64

	// Mean and Sigma parameterize LogNormal
	Mean  float64
	Sigma float64

	// Scale (x_min) and Alpha parameterize Pareto
	Scale float64
	Alpha float64
}

var (
	// DefaultBlockDistribution is log-normal in [2 MiB, 256 MiB] with mean ~35 MiB
	DefaultBlockDistribution = Distribution{
		Kind:  LogNormal,
		Min:   2 * MiB,
		Max:   256 * MiB,
		Mean:  35 * MiB,
		Sigma: 0.9,
	}

	// DefaultPaddingDistribution is Pareto in [5 MiB, 600 MiB] with α = 1.25
	DefaultPaddingDistribution = Distribution{
		Kind:  Pareto,
		Min:   5 * MiB,
		Max:   600 * MiB,
		Scale: 5 * MiB,
		Alpha: 1.25,
	}
)

// ScaledDistribution returns d with every size parameter divided by factor.
// It keeps the shape of d and is meant for small deployments and tests.
func ScaledDistribution(d Distribution, factor int64) Distribution {
	if factor <= 1 {
		return d
	}
	d.Min /= factor
	d.Max /= factor
	d.Mean /= float64(factor)
	d.Scale /= float64(factor)
	if d.Min < 1 {
		d.Min = 1
	}
	if d.Max < d.Min {
		d.Max = d.Min
	}
	return d
}

// Validate checks the distribution parameters
func (d Distribution) Validate() error {
	switch d.Kind {
	case LogNormal:
		if d.Mean <= 0 || d.Sigma <= 0 {
			return NewValidationError("distribution", d, "log-normal requires positive mean and sigma")
		}
	case Pareto:
		if d.Scale <= 0 || d.Alpha <= 0 {
			return NewValidationError("distribution", d, "pareto requires positive scale and alpha")
		}
	default:
		return NewValidationError("distribution", d.Kind, "unknown distribution kind")
	}
	if d.Min <= 0 || d.Max < d.Min {
		return NewValidationError("distribution", d, fmt.Sprintf("invalid range [%d, %d]", d.Min, d.Max))
	}
	return nil
}

// Sample draws one size using randomness from r
func (d Distribution) Sample(r io.Reader) (int64, error) {
	var x float64
	for attempt := 0; attempt < maxSampleAttempts; attempt++ {
		var err error
		switch d.Kind {
		case LogNormal:
			x, err = d.sampleLogNormal(r)
		case Pareto:
			x, err = d.samplePareto(r)
		default:
			return 0, NewValidationError("distribution", d.Kind, "unknown distribution kind")
		}
		if err != nil {
			return 0, err
		}
		if x >= float64(d.Min) && x <= float64(d.Max) {
			break
		}
	}
	return d.clamp(x), nil
}

func (d Distribution) clamp(x float64) int64 {
	if math.IsNaN(x) || x < float64(d.Min) {
		return d.Min
	}
	if x > float64(d.Max) {
		return d.Max
	}
	return int64(x)
}

// sampleLogNormal uses the Box–Muller transform on two uniform draws
func (d Distribution) sampleLogNormal(r io.Reader) (float64, error) {
	u1, err := uniform(r)
	if err != nil {
		return 0, err
	}
	u2, err := uniform(r)
	if err != nil {
		return 0, err
	}

	z := math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
	mu := math.Log(d.Mean) - d.Sigma*d.Sigma/2
	return math.Exp(mu + d.Sigma*z), nil
}

// samplePareto uses inverse-CDF sampling
func (d Distribution) samplePareto(r io.Reader) (float64, error) {
	u, err := uniform(r)
	if err != nil {
		return 0, err
	}
	return d.Scale / math.Pow(u, 1/d.Alpha), nil
}

// uniform returns a float64 in (0, 1] built from 53 random bits
func uniform(r io.Reader) (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read randomness: %w", err)
	}
	n := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(n+1) / (1 << 53), nil
}

// SampleBlockSize draws a block size in [2 MiB, 256 MiB]
func SampleBlockSize() (int64, error) {
	return DefaultBlockDistribution.Sample(rand.Reader)
}

// SamplePaddingSize draws a padding size in [5 MiB, 600 MiB]
func SamplePaddingSize() (int64, error) {
	return DefaultPaddingDistribution.Sample(rand.Reader)
}
