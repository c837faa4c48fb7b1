// Package extract turns stored requirement documents into atomic Requirement
// records: text extraction per media type, deterministic clause segmentation,
// and compliance-standard tagging.
package extract

import (
	"fmt"
	"strings"

	"github.com/hyperjump/kensho/internal/config"
	"github.com/hyperjump/kensho/internal/fault"
	"github.com/hyperjump/kensho/internal/models"
)

// Extractor produces Requirement records from raw document content.
// Extraction is deterministic: the same content always yields the same
// requirement ids and descriptions.
type Extractor struct {
	dict *Dictionary
}

// NewExtractor returns an Extractor tagging requirements against dict.
func NewExtractor(dict *Dictionary) *Extractor {
	return &Extractor{dict: dict}
}

// Requirements extracts the requirement set of a document. Structured-spec
// JSON documents carry their requirements directly and skip segmentation;
// all other media types go through text extraction and clause segmentation.
// Returns a fault.KindExtraction error when the document yields no text or
// no requirements; that failure is terminal for the document.
func (e *Extractor) Requirements(docID string, content []byte, mediaType string) ([]models.Requirement, error) {
	if mediaType == "application/json" {
		return e.fromSpecJSON(docID, content)
	}

	text, err := Text(content, mediaType)
	if err != nil {
		return nil, fault.Wrap(fault.KindExtraction, "text extraction failed", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fault.New(fault.KindExtraction, "document contains no extractable text")
	}
	clauses := Segment(text)
	if len(clauses) == 0 {
		return nil, fault.New(fault.KindExtraction, "segmentation yielded zero requirements")
	}

	reqs := make([]models.Requirement, len(clauses))
	for i, clause := range clauses {
		reqs[i] = models.Requirement{
			ID:             fmt.Sprintf("REQ-%d", i+1),
			DocumentID:     docID,
			Description:    clause,
			ComplianceRefs: e.dict.Match(clause),
		}
	}
	return reqs, nil
}

// Text extracts plain text from content based on its declared media type.
// Unknown types are treated as plain text.
func Text(content []byte, mediaType string) (string, error) {
	switch mediaType {
	case "application/pdf":
		return extractPDF(content)
	case config.MediaTypeDOCX:
		return extractDOCX(content)
	default:
		return extractPlain(content)
	}
}
