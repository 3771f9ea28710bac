package benefits

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		hmo, tier         string
		wantHMO, wantTier string
	}{
		{"Maccabi", "Gold", "מכבי", "זהב"},
		{"Clalit", "Silver", "כללית", "כסף"},
		{"Meuhedet", "Bronze", "מאוחדת", "ארד"},
		{"כללית", "כסף", "כללית", "כסף"},
		{"  Maccabi ", " Gold", "מכבי", "זהב"},
		{"Leumit", "Platinum", "Leumit", "Platinum"},
		{"", "", "", ""},
	}
	for _, tc := range cases {
		h, tr := Normalize(tc.hmo, tc.tier)
		assert.Equal(t, tc.wantHMO, h, tc.hmo)
		assert.Equal(t, tc.wantTier, tr, tc.tier)

		h2, tr2 := Normalize(h, tr)
		assert.Equal(t, h, h2, "normalize should be idempotent")
		assert.Equal(t, tr, tr2, "normalize should be idempotent")
	}
}

func TestLoadDir(t *testing.T) {
	table, diags, err := LoadDir("testdata/services")
	require.NoError(t, err)

	assert.Equal(t, []string{"כללית", "מאוחדת", "מכבי"}, table.HMOs())
	assert.Equal(t, []string{"ארד", "זהב", "כסף"}, table.Tiers("Maccabi"))

	got := table.Select("Maccabi", "Gold")
	assert.Equal(t, ServiceMap{
		"בדיקות וניקוי שיניים": "70% הנחה, עד 2 טיפולים בשנה",
		"טיפולי שורש":          "50% הנחה",
		"בדיקת ראייה":          "חינם",
	}, got)

	require.Len(t, diags, 2)
	reasons := []string{diags[0].Reason, diags[1].Reason}
	assert.Contains(t, reasons, "line is not of the form tier: description")
	assert.Contains(t, reasons, "cell has no matching HMO column")
	for _, d := range diags {
		assert.Equal(t, "dental_services.html", d.File)
		assert.NotEmpty(t, d.String())
	}
}

func TestLoadDirSentinelAndEmptyCell(t *testing.T) {
	table, _, err := LoadDir("testdata/services")
	require.NoError(t, err)

	bronze := table.Select("Meuhedet", "Bronze")
	assert.Equal(t, Unavailable, bronze["בדיקות וניקוי שיניים"])

	// The empty Clalit dental cell creates no tier entry for that service.
	for _, tier := range table.Tiers("Clalit") {
		_, ok := table.Select("Clalit", tier)["בדיקות וניקוי שיניים"]
		assert.False(t, ok, tier)
	}
	assert.Empty(t, table.Select("Clalit", "Bronze"))
}

func TestLoadDirMissing(t *testing.T) {
	_, _, err := LoadDir("testdata/does-not-exist")
	assert.ErrorIs(t, err, ErrServicesDir)

	_, _, err = LoadDir("testdata/services/dental_services.html")
	assert.ErrorIs(t, err, ErrServicesDir)
}

func TestSelectAbsentIsEmpty(t *testing.T) {
	table := NewTable(map[string]map[string]ServiceMap{
		"מכבי": {"זהב": {"s": "d"}},
	})
	assert.Equal(t, ServiceMap{"s": "d"}, table.Select("Maccabi", "Gold"))
	assert.Empty(t, table.Select("Maccabi", "Silver"))
	assert.Empty(t, table.Select("Leumit", "Gold"))
	assert.NotNil(t, table.Select("Leumit", "Gold"))

	// Returned maps are copies.
	table.Select("Maccabi", "Gold")["s"] = "changed"
	assert.Equal(t, "d", table.Select("Maccabi", "Gold")["s"])
}

func TestParseNoTable(t *testing.T) {
	table, diags, err := Parse(strings.NewReader("<html><body><p>nothing</p></body></html>"), "empty.html")
	require.NoError(t, err)
	assert.Zero(t, table.Len())
	require.Len(t, diags, 1)
	assert.Equal(t, "no table found", diags[0].Reason)
}

func TestParseEnglishTiers(t *testing.T) {
	doc := `<table>
<tr><th>Service</th><th>Maccabi</th></tr>
<tr><td>Physio</td><td><p>Gold: 10 sessions</p><p>Silver: 5 sessions</p></td></tr>
</table>`
	table, diags, err := Parse(strings.NewReader(doc), "en.html")
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, 2, table.Len())
	// Keys are stored as found; lookups normalize to the Hebrew keys.
	assert.Equal(t, []string{"Maccabi"}, table.HMOs())
	assert.Empty(t, table.Select("Maccabi", "Gold"))
}
