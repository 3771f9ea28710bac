package benefits

import "sort"

// Unavailable is stored when a tier line names a tier but carries no text.
const Unavailable = "לא זמין"

// ServiceMap maps a service name to the benefit text for one HMO and tier.
type ServiceMap map[string]string

// Table holds HMO -> tier -> service -> benefit text. It is built once at
// startup and never modified, so concurrent readers need no locking.
type Table struct {
	data map[string]map[string]ServiceMap
}

// NewTable wraps already-built data. The caller must not modify it afterwards.
func NewTable(data map[string]map[string]ServiceMap) *Table {
	if data == nil {
		data = map[string]map[string]ServiceMap{}
	}
	return &Table{data: data}
}

// Select returns the services for an HMO and tier, normalizing both first.
// An absent combination yields an empty map, never an error.
func (t *Table) Select(hmo, tier string) ServiceMap {
	h, tr := Normalize(hmo, tier)
	services := t.data[h][tr]
	out := make(ServiceMap, len(services))
	for k, v := range services {
		out[k] = v
	}
	return out
}

// HMOs lists the HMO keys in sorted order.
func (t *Table) HMOs() []string {
	out := make([]string, 0, len(t.data))
	for h := range t.data {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Tiers lists the tiers present for an HMO in sorted order.
func (t *Table) Tiers(hmo string) []string {
	tiers := t.data[NormalizeHMO(hmo)]
	out := make([]string, 0, len(tiers))
	for tr := range tiers {
		out = append(out, tr)
	}
	sort.Strings(out)
	return out
}

// Len counts (HMO, tier, service) entries.
func (t *Table) Len() int {
	n := 0
	for _, tiers := range t.data {
		for _, services := range tiers {
			n += len(services)
		}
	}
	return n
}

func (t *Table) put(hmo, tier, service, desc string) {
	tiers, ok := t.data[hmo]
	if !ok {
		tiers = map[string]ServiceMap{}
		t.data[hmo] = tiers
	}
	services, ok := tiers[tier]
	if !ok {
		services = ServiceMap{}
		tiers[tier] = services
	}
	services[service] = desc
}
