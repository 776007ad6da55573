package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// RawSubjectRecord is the typed contract for an incoming patient record.
// Every field is optional; consumers resolve missing values to defaults.
type RawSubjectRecord struct {
	SubjectID      string                 `json:"subject_id"`
	Age            FlexInt                `json:"age"`
	Gender         string                 `json:"gender,omitempty"`
	Pregnancy      *PregnancyInfo         `json:"pregnancy,omitempty"`
	Location       string                 `json:"location,omitempty"`
	Address        string                 `json:"address,omitempty"`
	VisitDate      string                 `json:"visit_date,omitempty"`
	MedicalHistory []string               `json:"medical_history,omitempty"`
	Medications    []string               `json:"medications,omitempty"`
	Allergies      []string               `json:"allergies,omitempty"`
	VisitHistory   []VisitEntry           `json:"visit_history,omitempty"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
}

type PregnancyInfo struct {
	IsPregnant *bool  `json:"is_pregnant,omitempty"`
	Trimester  *int   `json:"trimester,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type VisitEntry struct {
	Date string `json:"date,omitempty"`
	Type string `json:"type,omitempty"`
}

// FlexInt decodes a JSON number or numeric string. Anything else leaves it unset.
type FlexInt struct {
	Value int
	Set   bool
}

func IntValue(v int) FlexInt {
	return FlexInt{Value: v, Set: true}
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	switch v := raw.(type) {
	case float64:
		*f = FlexInt{Value: int(v), Set: true}
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*f = FlexInt{Value: int(n), Set: true}
		}
	}
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(f.Value)), nil
}
