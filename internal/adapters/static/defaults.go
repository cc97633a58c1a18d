package static

// Defaults lists the built-in paste services. Configuration may replace them.
func Defaults() []Config {
	return []Config{
		{
			ID:       "pastebin",
			Pattern:  `pastebin\.com/(?:raw/)?([A-Za-z0-9]+)`,
			Template: "https://pastebin.com/raw/{id}",
			Strategy: StrategyRaw,
		},
		{
			ID:           "pastedrop",
			AppendSuffix: "/raw",
			Strategy:     StrategyRaw,
		},
		{
			ID:       "hastebin",
			Pattern:  `hastebin\.com/(?:raw/|documents/)?([A-Za-z0-9]+)`,
			Template: "https://hastebin.com/documents/{id}",
			Strategy: StrategyJSON,
			Field:    "data",
		},
		{
			// Share pages render the paste inside a textarea; used when the raw
			// endpoint is blocked.
			ID:       "pastebin-html",
			Strategy: StrategyHTML,
			Selector: "textarea.textarea",
		},
		{
			ID:       "rentry",
			Pattern:  `rentry\.(?:co|org)/([A-Za-z0-9_-]+)`,
			Template: "https://rentry.co/{id}/raw",
			Strategy: StrategyRaw,
		},
	}
}
