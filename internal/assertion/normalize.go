package assertion

import "strings"

// NormalizeMetric maps the spellings agents commonly use for a benchmark onto
// its canonical allow-list name. The metric type is preferred over the name.
func NormalizeMetric(m Metric) string {
	s := m.Type
	if strings.TrimSpace(s) == "" {
		s = m.Name
	}
	return NormalizeName(s)
}

func NormalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_(mc2)", "")
	s = strings.ReplaceAll(s, "_(5_shot_mc)", "")
	s = strings.ReplaceAll(s, " ", "_")
	switch {
	case strings.Contains(s, "truthful"):
		return "truthfulqa"
	case strings.Contains(s, "mmlu"):
		return "mmlu"
	}
	return s
}

// denyMatch returns the first deny-list entry contained in the metric's name or type.
func denyMatch(m Metric, deny []string) (string, bool) {
	name := strings.ToLower(m.Name)
	typ := strings.ToLower(m.Type)
	for _, d := range deny {
		d = strings.ToLower(d)
		if d == "" {
			continue
		}
		if strings.Contains(name, d) || strings.Contains(typ, d) {
			return d, true
		}
	}
	return "", false
}
