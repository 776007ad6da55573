package dlp

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"gopkg.in/yaml.v3"
)

// Safe Harbor identifier classes (45 CFR 164.514(b)(2)).
const (
	ClassName               = "NAME"
	ClassGeographic         = "GEOGRAPHIC_SUBDIVISION"
	ClassDate               = "DATE"
	ClassPhone              = "PHONE"
	ClassFax                = "FAX"
	ClassEmail              = "EMAIL"
	ClassSSN                = "SSN"
	ClassMedicalRecord      = "MEDICAL_RECORD_NUMBER"
	ClassHealthPlan         = "HEALTH_PLAN_NUMBER"
	ClassAccount            = "ACCOUNT_NUMBER"
	ClassCertificateLicense = "CERTIFICATE_LICENSE"
	ClassVehicle            = "VEHICLE_IDENTIFIER"
	ClassDevice             = "DEVICE_IDENTIFIER"
	ClassURL                = "URL"
	ClassIPAddress          = "IP_ADDRESS"
	ClassBiometric          = "BIOMETRIC"
	ClassPhoto              = "FULL_FACE_PHOTO"
	ClassOtherUniqueID      = "OTHER_UNIQUE_ID"
)

// SafeHarborClasses lists all 18 classes in regulation order.
var SafeHarborClasses = []string{
	ClassName, ClassGeographic, ClassDate, ClassPhone, ClassFax, ClassEmail,
	ClassSSN, ClassMedicalRecord, ClassHealthPlan, ClassAccount, ClassCertificateLicense,
	ClassVehicle, ClassDevice, ClassURL, ClassIPAddress, ClassBiometric, ClassPhoto,
	ClassOtherUniqueID,
}

type Rule struct {
	Name     string          `yaml:"name" json:"name"`
	Type     string          `yaml:"type" json:"type"`
	Pattern  string          `yaml:"pattern" json:"pattern"`
	Mask     string          `yaml:"mask" json:"mask"`
	Enabled  bool            `yaml:"enabled" json:"enabled"`
	Severity models.Severity `yaml:"severity" json:"severity"`
}

type RulesConfig struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

func LoadRules(path string) (RulesConfig, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultRules(), err
	}

	var cfg RulesConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return RulesConfig{}, err
	}

	if len(cfg.Rules) == 0 {
		return RulesConfig{}, errors.New("no DLP rules configured")
	}

	return cfg, nil
}

// DefaultRules covers every Safe Harbor class. Order matters for redaction:
// fax runs before phone and SSN before the looser numeric rules.
func DefaultRules() RulesConfig {
	critical := models.SeverityCritical
	return RulesConfig{Rules: []Rule{
		{Name: "Titled name", Type: ClassName, Pattern: `\b(?:Mr|Mrs|Ms|Miss|Dr|Prof)\.?\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?`, Mask: "[NAME]", Enabled: true, Severity: critical},
		{Name: "Street address or ZIP", Type: ClassGeographic, Pattern: `\b\d{1,5}\s+(?:[A-Z][a-z]+\s+){1,3}(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Court|Ct|Way)\b|\b\d{5}(?:-\d{4})?\b`, Mask: "[ADDRESS]", Enabled: true, Severity: critical},
		{Name: "Calendar date", Type: ClassDate, Pattern: `\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b`, Mask: "[DATE]", Enabled: true, Severity: critical},
		{Name: "SSN", Type: ClassSSN, Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Mask: "[SSN]", Enabled: true, Severity: critical},
		{Name: "Fax", Type: ClassFax, Pattern: `(?i)\bfax\b\D{0,5}\d[\d\-\s().]{6,}\d`, Mask: "[FAX]", Enabled: true, Severity: critical},
		{Name: "Phone", Type: ClassPhone, Pattern: `\(\d{3}\)\s?\d{3}-\d{4}\b|\b\d{3}[-.]\d{3}[-.]\d{4}\b`, Mask: "[PHONE]", Enabled: true, Severity: critical},
		{Name: "Email", Type: ClassEmail, Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Mask: "[EMAIL]", Enabled: true, Severity: critical},
		{Name: "Medical record number", Type: ClassMedicalRecord, Pattern: `(?i)\b(?:mrn|medical record(?: number)?)\s*[:#]?\s*[A-Z0-9-]*\d[A-Z0-9-]*`, Mask: "[MRN]", Enabled: true, Severity: critical},
		{Name: "Health plan beneficiary", Type: ClassHealthPlan, Pattern: `(?i)\b(?:member|policy|beneficiary|health plan)\s*(?:id|no|number|#)\s*[:#]?\s*[A-Z0-9-]*\d[A-Z0-9-]*`, Mask: "[HEALTH_PLAN]", Enabled: true, Severity: critical},
		{Name: "Account number", Type: ClassAccount, Pattern: `(?i)\b(?:account|acct)\s*(?:no|number|#)?\s*[:#]?\s*\d{4,}`, Mask: "[ACCOUNT]", Enabled: true, Severity: critical},
		{Name: "Certificate or license", Type: ClassCertificateLicense, Pattern: `(?i)\b(?:license|licence|certificate|dea)\s*(?:no|number|#)?\s*[:#]?\s*[A-Z0-9-]*\d[A-Z0-9-]*`, Mask: "[LICENSE]", Enabled: true, Severity: critical},
		{Name: "VIN or plate", Type: ClassVehicle, Pattern: `\b[A-HJ-NPR-Z0-9]{17}\b|(?i)\b(?:license plate|plate)\s*[:#]?\s*[A-Z0-9-]{2,8}\b`, Mask: "[VEHICLE]", Enabled: true, Severity: critical},
		{Name: "Device serial", Type: ClassDevice, Pattern: `(?i)\b(?:serial|device id|udi|imei)\s*(?:no|number|#)?\s*[:#]?\s*[A-Z0-9-]*\d[A-Z0-9-]*`, Mask: "[DEVICE]", Enabled: true, Severity: critical},
		{Name: "URL", Type: ClassURL, Pattern: `(?i)\bhttps?://[^\s"]+|\bwww\.[^\s"]+`, Mask: "[URL]", Enabled: true, Severity: critical},
		{Name: "IP address", Type: ClassIPAddress, Pattern: `\b(?:\d{1,3}\.){3}\d{1,3}\b`, Mask: "[IP]", Enabled: true, Severity: critical},
		{Name: "Biometric", Type: ClassBiometric, Pattern: `(?i)\b(?:fingerprint|retina(?:l)? scan|iris scan|voice ?print|biometric)s?\b`, Mask: "[BIOMETRIC]", Enabled: true, Severity: critical},
		{Name: "Full-face photograph", Type: ClassPhoto, Pattern: `(?i)\b(?:full[- ]face|facial)\s+(?:photo|photograph|image|picture)s?\b`, Mask: "[PHOTO]", Enabled: true, Severity: critical},
		{Name: "Other unique identifier", Type: ClassOtherUniqueID, Pattern: `(?i)\b(?:patient|subject|unique)\s*(?:id|identifier)\s*[:#]?\s*[A-Z0-9-]*\d[A-Z0-9-]*`, Mask: "[ID]", Enabled: true, Severity: critical},
	}}
}
