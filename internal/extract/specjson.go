package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/models"
)

// specDocument is the structured-spec JSON upload format: requirements are
// provided directly instead of being segmented out of prose.
type specDocument struct {
	Requirements []specRequirement `json:"requirements"`
}

type specRequirement struct {
	Description    string   `json:"description"`
	ComplianceRefs []string `json:"compliance_refs,omitempty"`
}

// fromSpecJSON decodes a structured spec. Ids are still reassigned REQ-n by
// position so downstream behavior matches segmented documents. Declared
// compliance refs are kept when the dictionary knows them and merged with
// keyword matches on the description.
func (e *Extractor) fromSpecJSON(docID string, content []byte) ([]models.Requirement, error) {
	var spec specDocument
	if err := json.Unmarshal(content, &spec); err != nil {
		return nil, fault.Wrap(fault.KindExtraction, "invalid structured spec", err)
	}
	if len(spec.Requirements) == 0 {
		return nil, fault.New(fault.KindExtraction, "structured spec contains no requirements")
	}

	reqs := make([]models.Requirement, 0, len(spec.Requirements))
	for i, sr := range spec.Requirements {
		desc := strings.TrimSpace(sr.Description)
		if desc == "" {
			return nil, fault.Newf(fault.KindExtraction, "structured spec requirement %d has empty description", i+1)
		}
		refs := e.dict.Match(desc)
		for _, declared := range sr.ComplianceRefs {
			if e.dict.Known(declared) && !containsString(refs, declared) {
				refs = append(refs, declared)
			}
		}
		reqs = append(reqs, models.Requirement{
			ID:             fmt.Sprintf("REQ-%d", i+1),
			DocumentID:     docID,
			Description:    desc,
			ComplianceRefs: refs,
		})
	}
	return reqs, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
