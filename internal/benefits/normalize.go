package benefits

import "strings"

var hmoNames = map[string]string{
	"Maccabi":  "מכבי",
	"Clalit":   "כללית",
	"Meuhedet": "מאוחדת",
	"מכבי":     "מכבי",
	"כללית":    "כללית",
	"מאוחדת":   "מאוחדת",
}

var tierNames = map[string]string{
	"Gold":   "זהב",
	"Silver": "כסף",
	"Bronze": "ארד",
	"זהב":    "זהב",
	"כסף":    "כסף",
	"ארד":    "ארד",
}

// Normalize maps English HMO and tier names onto the Hebrew keys used by the
// benefit tables. Hebrew names map to themselves and anything unknown is
// passed through trimmed, so Normalize is idempotent.
func Normalize(hmo, tier string) (string, string) {
	return NormalizeHMO(hmo), NormalizeTier(tier)
}

func NormalizeHMO(hmo string) string {
	hmo = strings.TrimSpace(hmo)
	if v, ok := hmoNames[hmo]; ok {
		return v
	}
	return hmo
}

func NormalizeTier(tier string) string {
	tier = strings.TrimSpace(tier)
	if v, ok := tierNames[tier]; ok {
		return v
	}
	return tier
}
