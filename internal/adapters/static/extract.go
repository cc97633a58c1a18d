package static

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	jsoniter "github.com/json-iterator/go"

	"github.com/JakeFAU/paste-resolver/internal/resolver"
)

// Strategy selects how content is taken from a fetched body.
type Strategy string

const (
	// StrategyRaw returns the body unchanged.
	StrategyRaw Strategy = "raw"
	// StrategyHTML returns the trimmed text of the first selector match.
	StrategyHTML Strategy = "html"
	// StrategyJSON returns a string field addressed by a dotted path.
	StrategyJSON Strategy = "json"
)

// Extractor pulls paste text from a body.
type Extractor struct {
	strategy Strategy
	selector string
	path     []any
}

// NewExtractor validates a strategy and its parameters.
func NewExtractor(strategy Strategy, selector, field string) (Extractor, error) {
	switch strategy {
	case "", StrategyRaw:
		return Extractor{strategy: StrategyRaw}, nil
	case StrategyHTML:
		if strings.TrimSpace(selector) == "" {
			return Extractor{}, fmt.Errorf("html strategy requires a selector")
		}
		return Extractor{strategy: StrategyHTML, selector: selector}, nil
	case StrategyJSON:
		if strings.TrimSpace(field) == "" {
			return Extractor{}, fmt.Errorf("json strategy requires a field")
		}
		parts := strings.Split(field, ".")
		path := make([]any, 0, len(parts))
		for _, p := range parts {
			if p == "" {
				return Extractor{}, fmt.Errorf("json field %q has an empty segment", field)
			}
			path = append(path, p)
		}
		return Extractor{strategy: StrategyJSON, path: path}, nil
	default:
		return Extractor{}, fmt.Errorf("unknown strategy %q", strategy)
	}
}

// Extract applies the strategy to body. Failures are ParseError.
func (e Extractor) Extract(body []byte) (string, error) {
	switch e.strategy {
	case StrategyHTML:
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
		if err != nil {
			return "", resolver.NewError(resolver.KindParseError, "could not parse html", err)
		}
		sel := doc.Find(e.selector).First()
		if sel.Length() == 0 {
			return "", resolver.NewError(resolver.KindParseError,
				fmt.Sprintf("content element %q not found", e.selector), nil)
		}
		return strings.TrimSpace(sel.Text()), nil
	case StrategyJSON:
		if !jsoniter.Valid(body) {
			return "", resolver.NewError(resolver.KindParseError, "response is not valid json", nil)
		}
		v := jsoniter.Get(body, e.path...)
		if v.ValueType() != jsoniter.StringValue {
			return "", resolver.NewError(resolver.KindParseError,
				fmt.Sprintf("json field %q missing or not a string", e.fieldName()), v.LastError())
		}
		return v.ToString(), nil
	default:
		return string(body), nil
	}
}

func (e Extractor) fieldName() string {
	parts := make([]string, len(e.path))
	for i, p := range e.path {
		parts[i], _ = p.(string)
	}
	return strings.Join(parts, ".")
}
