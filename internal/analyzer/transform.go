package analyzer

import (
	"fmt"

	algofft "github.com/cwbudde/algo-fft"
	"github.com/mjibson/go-dsp/fft"
	"github.com/sirupsen/logrus"
)

// transformer computes a forward complex FFT of len(src) points into dst.
type transformer interface {
	forward(dst, src []complex128) error
	size() int
	name() string
}

// planTransform runs a precomputed algo-fft plan and does not allocate per call.
type planTransform struct {
	n    int
	plan *algofft.Plan[complex128]
}

func newPlanTransform(n int) (*planTransform, error) {
	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, fmt.Errorf("fft plan %d: %w", n, err)
	}
	return &planTransform{n: n, plan: plan}, nil
}

func (t *planTransform) forward(dst, src []complex128) error {
	return t.plan.Forward(dst, src)
}

func (t *planTransform) size() int    { return t.n }
func (t *planTransform) name() string { return "algo-fft" }

// dspTransform uses go-dsp. It allocates on every call, so it is only used
// when no plan can be built for the requested size.
type dspTransform struct {
	n int
}

func (t *dspTransform) forward(dst, src []complex128) error {
	if len(src) != t.n || len(dst) < t.n {
		return fmt.Errorf("go-dsp fft: got src=%d dst=%d want %d", len(src), len(dst), t.n)
	}
	copy(dst, fft.FFT(src))
	return nil
}

func (t *dspTransform) size() int    { return t.n }
func (t *dspTransform) name() string { return "go-dsp" }

func newTransformer(n int, log logrus.FieldLogger) transformer {
	t, err := newPlanTransform(n)
	if err == nil {
		return t
	}
	log.WithError(err).WithField("fft_size", n).Warn("falling back to go-dsp transform")
	return &dspTransform{n: n}
}
