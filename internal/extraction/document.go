// Package extraction converts OCR text of a National Insurance work-injury
// form (בל/283) into a structured Document.
package extraction

import (
	"encoding/json"
	"io"
)

type DateData struct {
	Day   string `json:"day"`
	Month string `json:"month"`
	Year  string `json:"year"`
}

type Address struct {
	Street      string `json:"street"`
	HouseNumber string `json:"houseNumber"`
	Entrance    string `json:"entrance"`
	Apartment   string `json:"apartment"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	POBox       string `json:"poBox"`
}

// MedicalInstitutionFields is the section filled in by the clinic.
type MedicalInstitutionFields struct {
	HealthFundMember string `json:"healthFundMember"`
	NatureOfAccident string `json:"natureOfAccident"`
	MedicalDiagnoses string `json:"medicalDiagnoses"`
}

// Document is the extracted form. Every leaf is a string and an unreadable
// field is "".
type Document struct {
	LastName                 string                   `json:"lastName"`
	FirstName                string                   `json:"firstName"`
	IDNumber                 string                   `json:"idNumber"`
	Gender                   string                   `json:"gender"`
	DateOfBirth              DateData                 `json:"dateOfBirth"`
	Address                  Address                  `json:"address"`
	LandlinePhone            string                   `json:"landlinePhone"`
	MobilePhone              string                   `json:"mobilePhone"`
	JobType                  string                   `json:"jobType"`
	DateOfInjury             DateData                 `json:"dateOfInjury"`
	TimeOfInjury             string                   `json:"timeOfInjury"`
	AccidentLocation         string                   `json:"accidentLocation"`
	AccidentAddress          string                   `json:"accidentAddress"`
	AccidentDescription      string                   `json:"accidentDescription"`
	InjuredBodyPart          string                   `json:"injuredBodyPart"`
	Signature                string                   `json:"signature"`
	FormFillingDate          DateData                 `json:"formFillingDate"`
	FormReceiptDateAtClinic  DateData                 `json:"formReceiptDateAtClinic"`
	MedicalInstitutionFields MedicalInstitutionFields `json:"medicalInstitutionFields"`
}

// Encode writes d as indented JSON with Hebrew and markup left unescaped.
func (d *Document) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}
