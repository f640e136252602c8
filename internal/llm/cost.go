package llm

// price is USD per million tokens.
type price struct{ in, out float64 }

var prices = map[string]price{
	"claude-sonnet-4-6":         {3.00, 15.00},
	"claude-opus-4-6":           {15.00, 75.00},
	"claude-haiku-4-5-20251001": {0.80, 4.00},
	"gpt-5.2":                   {1.75, 14.00},
	"gpt-5-mini":                {0.25, 2.00},
	"gpt-4o-mini":               {0.15, 0.60},
	"gemini-2.0-flash":          {0.10, 0.40},
	"gemini-1.5-pro":            {1.25, 5.00},
}

// EstimateCost returns the USD cost of a completion, or 0 for models
// without a known price (local models included).
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	p, ok := prices[model]
	if !ok {
		return 0
	}
	return (float64(inputTokens)*p.in + float64(outputTokens)*p.out) / 1e6
}
