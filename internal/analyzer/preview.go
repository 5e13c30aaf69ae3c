package analyzer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/codesentinel/codesentinel/internal/manifest"
	"github.com/codesentinel/codesentinel/pkg/shared/errors"
)

// CostPreview projects the cost of a full classification run from a small
// sample of real requests.
type CostPreview struct {
	Provider       string
	SampleSize     int
	TotalFiles     int
	MeanCostPer1   float64
	EstimatedTotal float64
	// 95% confidence band around the total, from the sample's standard error.
	LowTotal  float64
	HighTotal float64
	// Token volumes extrapolated from the sample's observed usage.
	ProjectedInputTokens  int
	ProjectedOutputTokens int
}

// PreviewCost classifies a uniform random sample of the candidates for real
// and extrapolates the spend. Sampled classifications are written into the
// manifest so the main run does not repeat them.
func (a *Analyzer) PreviewCost(ctx context.Context, m *manifest.Manifest) (*CostPreview, error) {
	candidates := a.Candidates(m)
	if len(candidates) == 0 {
		return &CostPreview{Provider: a.provider.Name()}, nil
	}

	k := a.opts.SampleSize
	if k > len(candidates) {
		k = len(candidates)
	}

	pc := a.cfg.LLM.Providers[a.provider.Name()]
	costs := make([]float64, 0, k)
	var sampleIn, sampleOut int
	for _, i := range a.sample(len(candidates), k) {
		e := candidates[i]
		c, err := a.classifyFile(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("cost preview sample %q failed: %w", e.Path, err)
		}
		m.SetClassification(e.Path, toManifest(c))
		sampleIn += c.InputTokens
		sampleOut += c.OutputTokens
		cost := float64(c.InputTokens)/1000*pc.InputRatePer1K +
			float64(c.OutputTokens)/1000*pc.OutputRatePer1K
		costs = append(costs, cost)
	}

	mean, stddev := meanStddev(costs)
	n := float64(len(costs))
	total := float64(len(candidates))

	// 95% band on the per-file mean, scaled to the full run.
	margin := 1.96 * stddev / math.Sqrt(n)
	preview := &CostPreview{
		Provider:              a.provider.Name(),
		SampleSize:            len(costs),
		TotalFiles:            len(candidates),
		MeanCostPer1:          mean,
		EstimatedTotal:        mean * total,
		LowTotal:              math.Max(0, (mean-margin)*total),
		HighTotal:             (mean + margin) * total,
		ProjectedInputTokens:  int(math.Round(float64(sampleIn) / n * total)),
		ProjectedOutputTokens: int(math.Round(float64(sampleOut) / n * total)),
	}
	return preview, nil
}

// Confirm renders the preview and reads a consent line. Anything but an
// explicit yes aborts the run as a cancellation.
func Confirm(preview *CostPreview, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Cost preview (sampled %d of %d files with %s):\n",
		preview.SampleSize, preview.TotalFiles, preview.Provider)
	fmt.Fprintf(out, "  projected tokens: %d input, %d output\n",
		preview.ProjectedInputTokens, preview.ProjectedOutputTokens)
	fmt.Fprintf(out, "  estimated total: $%.4f (95%% band $%.4f - $%.4f)\n",
		preview.EstimatedTotal, preview.LowTotal, preview.HighTotal)
	fmt.Fprint(out, "Proceed with analysis? [y/N]: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return &errors.CancelledError{}
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return nil
	default:
		return &errors.CancelledError{}
	}
}

func meanStddev(values []float64) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	if len(values) < 2 {
		return mean, 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return mean, math.Sqrt(sum / float64(len(values)-1))
}
