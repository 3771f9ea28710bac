package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Mode is the phase a chat session is in.
type Mode string

const (
	ModeCollecting Mode = "collecting"
	ModeAnswering  Mode = "answering"
)

// Profile is the member information gathered during collection.
type Profile struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	IDNumber       string `json:"id_number"`
	Gender         string `json:"gender"`
	Age            *int   `json:"age"`
	HMOName        string `json:"hmo_name"`
	HMOCardNumber  string `json:"hmo_card_number"`
	MembershipTier string `json:"membership_tier"`
}

// ProfileKeys are the JSON keys every extracted profile must carry.
var ProfileKeys = []string{
	"first_name",
	"last_name",
	"id_number",
	"gender",
	"age",
	"hmo_name",
	"hmo_card_number",
	"membership_tier",
}

// UnmarshalJSON accepts any identifier rendered as a number. The age may be a
// number or a numeric string; anything that is not a whole number in int range
// leaves it nil, since collection only requires the key to be present.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := map[string]*string{
		"first_name":      &p.FirstName,
		"last_name":       &p.LastName,
		"id_number":       &p.IDNumber,
		"gender":          &p.Gender,
		"hmo_name":        &p.HMOName,
		"hmo_card_number": &p.HMOCardNumber,
		"membership_tier": &p.MembershipTier,
	}
	for key, dst := range fields {
		v, ok := raw[key]
		if !ok {
			continue
		}
		s, err := scalarString(v)
		if err != nil {
			return fmt.Errorf("profile field %s: %w", key, err)
		}
		*dst = s
	}
	if v, ok := raw["age"]; ok {
		s, err := scalarString(v)
		if err != nil {
			return fmt.Errorf("profile field age: %w", err)
		}
		p.Age = parseAge(s)
	}
	return nil
}

func parseAge(s string) *int {
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil
	}
	n := int(f)
	return &n
}

func scalarString(v json.RawMessage) (string, error) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || string(v) == "null" {
		return "", nil
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", fmt.Errorf("expected a string or number")
	}
	return n.String(), nil
}

var (
	lettersOnly = regexp.MustCompile(`^[\p{L}\s'-]+$`)
	nineDigits  = regexp.MustCompile(`^\d{9}$`)
)

// Validate reports format problems in a profile. An empty result means the
// profile matches the collection rules.
func (p Profile) Validate() []string {
	var problems []string
	if !lettersOnly.MatchString(p.FirstName) {
		problems = append(problems, "first_name must contain letters only")
	}
	if !lettersOnly.MatchString(p.LastName) {
		problems = append(problems, "last_name must contain letters only")
	}
	if !nineDigits.MatchString(p.IDNumber) {
		problems = append(problems, "id_number must be exactly 9 digits")
	}
	switch {
	case p.Age == nil:
		problems = append(problems, "age must be a whole number")
	case *p.Age < 0 || *p.Age > 120:
		problems = append(problems, "age must be between 0 and 120")
	}
	if !nineDigits.MatchString(p.HMOCardNumber) {
		problems = append(problems, "hmo_card_number must be exactly 9 digits")
	}
	switch strings.TrimSpace(p.HMOName) {
	case "Maccabi", "Meuhedet", "Clalit", "מכבי", "מאוחדת", "כללית":
	default:
		problems = append(problems, "hmo_name must be Maccabi, Meuhedet or Clalit")
	}
	switch strings.TrimSpace(p.MembershipTier) {
	case "Gold", "Silver", "Bronze", "זהב", "כסף", "ארד":
	default:
		problems = append(problems, "membership_tier must be Gold, Silver or Bronze")
	}
	if strings.TrimSpace(p.Gender) == "" {
		problems = append(problems, "gender is required")
	}
	return problems
}

// Turn is one stored conversation message.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is a chat session together with its collected profile.
type Session struct {
	ID        string    `json:"id"`
	Language  string    `json:"language"`
	Mode      Mode      `json:"mode"`
	Profile   *Profile  `json:"profile,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
