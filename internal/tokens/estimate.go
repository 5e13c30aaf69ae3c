package tokens

// Heuristic per-extension token estimates for quick cost previews that run
// without fetching file contents. Values are typical whole-file counts for
// each language observed across real repositories.
var extensionTokenEstimates = map[string]int{
	".js":   1200,
	".jsx":  1400,
	".ts":   1300,
	".tsx":  1500,
	".py":   1800,
	".java": 2200,
	".cpp":  2000,
	".c":    1600,
	".h":    800,
	".css":  600,
	".html": 500,
	".json": 400,
	".yaml": 300,
	".yml":  300,
	".xml":  500,
	".go":   1400,
	".rb":   1600,
	".php":  1500,
	".cs":   1900,
	".sql":  800,
}

const defaultTokenEstimate = 1000

// promptOverheadTokens covers the analysis prompt scaffolding around the
// file content.
const promptOverheadTokens = 250

// EstimateTokens guesses the prompt token count for a file from its
// extension and size alone.
func EstimateTokens(extension string, size int64) int {
	base, ok := extensionTokenEstimates[extension]
	if !ok {
		base = defaultTokenEstimate
	}

	estimate := float64(base)
	switch {
	case size > 50*1024:
		estimate *= 2.0
	case size > 20*1024:
		estimate *= 1.5
	case size > 5*1024:
		estimate *= 1.2
	case size < 1024:
		estimate *= 0.5
	}

	return int(estimate) + promptOverheadTokens
}

// EstimateCost prices a heuristic estimate for one file against the given
// per-1K rates, including the fixed response allowance.
func EstimateCost(extension string, size int64, inputRate, outputRate float64) float64 {
	promptTokens := EstimateTokens(extension, size)
	cost := float64(promptTokens)/1000*inputRate +
		float64(EstimatedResponseTokens)/1000*outputRate
	return roundCost(cost)
}
