package compliance

import (
	"strings"

	"github.com/synaptica-ai/mlprofile/pkg/common/models"
	"github.com/synaptica-ai/mlprofile/pkg/pseudonym"
	"github.com/synaptica-ai/mlprofile/pkg/vector"
)

// SOC2 control names.
const (
	ControlAccess           = "access_control"
	ControlEncryption       = "encryption"
	ControlAuditLogging     = "audit_logging"
	ControlDataIntegrity    = "data_integrity"
	ControlMonitoring       = "monitoring"
	ControlIncidentResponse = "incident_response"
)

type control struct {
	name string
	met  func(p *models.AnonymizedProfile) bool
}

// Each control is judged from a signal the profile already carries.
var soc2Controls = []control{
	{ControlAccess, func(p *models.AnonymizedProfile) bool { return p.AnonymousID != "" }},
	{ControlEncryption, func(p *models.AnonymizedProfile) bool {
		return strings.HasPrefix(p.AnonymousID, pseudonym.Prefix) && len(p.AnonymousID) == pseudonym.IdentifierLength
	}},
	{ControlAuditLogging, func(p *models.AnonymizedProfile) bool { return !p.CreatedAt.IsZero() }},
	{ControlDataIntegrity, func(p *models.AnonymizedProfile) bool { return len(p.VectorFeatures) == vector.VectorLength }},
	{ControlMonitoring, func(p *models.AnonymizedProfile) bool { return p.QualityScore > 0 }},
	{ControlIncidentResponse, func(p *models.AnonymizedProfile) bool { return p.AlgorithmVersion != "" }},
}

func (v *Validator) checkSOC2(p *models.AnonymizedProfile) []models.Violation {
	var out []models.Violation
	for _, c := range soc2Controls {
		if c.met(p) {
			continue
		}
		out = append(out, models.Violation{
			Standard: models.StandardSOC2,
			Severity: models.SeverityMedium,
			Rule:     RuleSOC2Prefix + c.name,
			Message:  "control " + c.name + " not evidenced by profile",
		})
	}
	return out
}
