package tenant

import "github.com/qollective/qollective-go/envelope"

// TenantExtractionSection is the shape written to
// meta.extensions["tenant_extraction"].
type TenantExtractionSection struct {
	ExtractionSource   string         `json:"extraction_source"`
	ExtractionPriority int            `json:"extraction_priority"`
	ExtractionContext  map[string]any `json:"extraction_context"`
}

// Apply sets meta.tenant and meta.on_behalf_of from info, and records the
// extraction provenance in extensions["tenant_extraction"].
func Apply(info *TenantInfo, meta *envelope.Meta) {
	if info == nil || meta == nil {
		return
	}

	if info.TenantID != "" {
		meta.Tenant = envelope.StringField(info.TenantID)
	}
	if info.OnBehalfOf != "" {
		meta.OnBehalfOf = envelope.StringField(info.OnBehalfOf)
	}

	meta.SetExtension("tenant_extraction", TenantExtractionSection{
		ExtractionSource:   string(info.Source),
		ExtractionPriority: info.Source.Priority(),
		ExtractionContext:  info.Context,
	})
}
