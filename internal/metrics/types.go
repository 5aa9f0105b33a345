package metrics

// Loss term label values for the aht_loss gauge.
const (
	TermImitation    = "imitation"
	TermTD           = "td"
	TermConservative = "conservative"
	TermTotal        = "total"
)
