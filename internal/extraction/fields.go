package extraction

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
)

// field describes one key of Document. A field with children is an object,
// every other field is a string.
type field struct {
	name     string
	desc     string
	children []field
}

func dateField(name, desc string) field {
	return field{name: name, desc: desc, children: []field{
		{name: "day", desc: "Day of the month, two digits"},
		{name: "month", desc: "Month of the year, two digits"},
		{name: "year", desc: "Full year, e.g. 1990"},
	}}
}

var documentFields = []field{
	{name: "lastName", desc: "Last name (שם משפחה)"},
	{name: "firstName", desc: "First name (שם פרטי)"},
	{name: "idNumber", desc: "Israeli ID number including the check digit (ס״ב), digits only"},
	{name: "gender", desc: "Gender, the marked option of זכר / נקבה"},
	dateField("dateOfBirth", "Date of birth"),
	{name: "address", desc: "Home address", children: []field{
		{name: "street", desc: "Street name"},
		{name: "houseNumber", desc: "House number"},
		{name: "entrance", desc: "Entrance number or label"},
		{name: "apartment", desc: "Apartment number"},
		{name: "city", desc: "City or village name"},
		{name: "postalCode", desc: "Postal code"},
		{name: "poBox", desc: "PO box number if one is given, otherwise empty"},
	}},
	{name: "landlinePhone", desc: "Landline phone number, digits only with no Hebrew letters"},
	{name: "mobilePhone", desc: "Mobile phone number, usually starting with 05. OCR often reads the leading 0 as 6, write it as 0"},
	{name: "jobType", desc: "Type of job or occupation (סוג העבודה)"},
	dateField("dateOfInjury", "Date of the injury"),
	{name: "timeOfInjury", desc: "Time of the injury, HH:MM"},
	{name: "accidentLocation", desc: "The marked accident location. One of: 'במפעל', 'ת. דרכים בעבודה', " +
		"'ת. דרכים בדרך לעבודה/מהעבודה', 'תאונה בדרך ללא רכב', 'אחר'. Use the checkbox marks in the markdown; " +
		"if no option is marked return empty"},
	{name: "accidentAddress", desc: "Address where the accident happened"},
	{name: "accidentDescription", desc: "How the accident happened (נסיבות הפגיעה / תאור התאונה)"},
	{name: "injuredBodyPart", desc: "Injured body part(s)"},
	{name: "signature", desc: "Signature text if present"},
	dateField("formFillingDate", "Date the form was filled in"),
	dateField("formReceiptDateAtClinic", "Date the form was received at the clinic"),
	{name: "medicalInstitutionFields", desc: "Section filled in by the medical institution", children: []field{
		{name: "healthFundMember", desc: "The marked health fund. One of: כללית, מאוחדת, מכבי, לאומית. Use the checkbox marks in the markdown"},
		{name: "natureOfAccident", desc: "Nature or classification of the accident"},
		{name: "medicalDiagnoses", desc: "Medical diagnoses"},
	}},
}

// responseSchema builds the Gemini response schema for fields.
func responseSchema(fields []field) *genai.Schema {
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(fields)),
		Required:   make([]string, 0, len(fields)),
	}
	for _, f := range fields {
		s.Required = append(s.Required, f.name)
		if f.children != nil {
			child := responseSchema(f.children)
			child.Description = f.desc
			s.Properties[f.name] = child
			continue
		}
		s.Properties[f.name] = &genai.Schema{Type: genai.TypeString, Description: f.desc}
	}
	return s
}

// validationSchema builds the JSON Schema the normalized reply must satisfy.
func validationSchema(fields []field) map[string]interface{} {
	props := make(map[string]interface{}, len(fields))
	required := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		required = append(required, f.name)
		if f.children != nil {
			props[f.name] = validationSchema(f.children)
			continue
		}
		props[f.name] = map[string]interface{}{"type": "string"}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// formatInstructions describes every field path and the JSON layout.
func formatInstructions(fields []field) string {
	var b strings.Builder
	b.WriteString("Return a JSON object with exactly these fields:\n")
	writeFieldList(&b, fields, "")
	b.WriteString("\nAll values are strings. Use \"\" for anything you cannot read.\nLayout:\n")
	skeleton, _ := json.MarshalIndent(emptyObject(fields), "", "  ")
	b.Write(skeleton)
	b.WriteByte('\n')
	return b.String()
}

func writeFieldList(b *strings.Builder, fields []field, prefix string) {
	for _, f := range fields {
		path := f.name
		if prefix != "" {
			path = prefix + "." + f.name
		}
		fmt.Fprintf(b, "- %s: %s\n", path, f.desc)
		if f.children != nil {
			writeFieldList(b, f.children, path)
		}
	}
}

func emptyObject(fields []field) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		if f.children != nil {
			out[f.name] = emptyObject(f.children)
			continue
		}
		out[f.name] = ""
	}
	return out
}

// normalize rewrites obj in place for fields: null becomes "" (or an empty
// object for nested fields), strings are trimmed and numbers keep their
// literal text. Keys of the wrong kind are left for schema validation.
func normalize(obj map[string]interface{}, fields []field) {
	for _, f := range fields {
		v, ok := obj[f.name]
		if !ok {
			continue
		}
		if f.children != nil {
			switch nested := v.(type) {
			case nil:
				obj[f.name] = emptyObject(f.children)
			case map[string]interface{}:
				normalize(nested, f.children)
			}
			continue
		}
		switch val := v.(type) {
		case nil:
			obj[f.name] = ""
		case string:
			obj[f.name] = strings.TrimSpace(val)
		case json.Number:
			obj[f.name] = val.String()
		}
	}
}
