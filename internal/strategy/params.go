package strategy

import "fmt"

// Params holds strategy tuning values as decoded from YAML or JSON.
// Numeric values may arrive as int or float64 depending on the decoder.
type Params map[string]any

// Float reads a numeric parameter, falling back to def when absent.
func (p Params) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return def
}

// Int reads an integer parameter, falling back to def when absent.
func (p Params) Int(key string, def int) int {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return def
}

// Bool reads a boolean parameter, falling back to def when absent.
func (p Params) Bool(key string, def bool) bool {
	if v, ok := p[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// checkKeys rejects parameters a strategy does not recognize, so a typo in
// a tenant's config surfaces at activation instead of being silently
// ignored.
func checkKeys(p Params, allowed ...string) error {
	for key := range p {
		known := false
		for _, a := range allowed {
			if key == a {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown parameter %q", key)
		}
	}
	return nil
}
