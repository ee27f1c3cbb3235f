package usage

// Pricing is the per-model rate card, in USD per million tokens. The
// optional categories default to zero, which prices those tokens free.
type Pricing struct {
	Input         float64 `json:"input"`
	Output        float64 `json:"output"`
	Cached        float64 `json:"cached,omitempty"`
	Reasoning     float64 `json:"reasoning,omitempty"`
	CacheCreation float64 `json:"cache_creation,omitempty"`
}

// Tokens is one request's token counts by category.
type Tokens struct {
	Prompt        int `json:"prompt"`
	Completion    int `json:"completion"`
	Cached        int `json:"cached,omitempty"`
	Reasoning     int `json:"reasoning,omitempty"`
	CacheCreation int `json:"cache_creation,omitempty"`
}

// Cost prices a request against a pricing table keyed by
// "provider/model". A missing entry prices the request at zero; billing
// gaps are never fatal.
func Cost(table map[string]Pricing, provider, model string, tokens Tokens) float64 {
	p, ok := table[provider+"/"+model]
	if !ok {
		return 0
	}
	const million = 1_000_000
	return float64(tokens.Prompt)*p.Input/million +
		float64(tokens.Completion)*p.Output/million +
		float64(tokens.Cached)*p.Cached/million +
		float64(tokens.Reasoning)*p.Reasoning/million +
		float64(tokens.CacheCreation)*p.CacheCreation/million
}
