package wikidata

import (
	"bytes"
	"encoding/json"

	herrors "harvester/pkg/errors"
	"harvester/pkg/logger"
	"harvester/pkg/models"
)

type sparqlResponse struct {
	Results *struct {
		Bindings []map[string]sparqlValue `json:"bindings"`
	} `json:"results"`
}

type sparqlValue struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Parser turns a SPARQL JSON result page into records
type Parser struct {
	logger logger.Logger
}

// NewParser creates a Wikidata result parser
func NewParser(log logger.Logger) *Parser {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Parser{logger: log.WithField("source", SourceName)}
}

// Parse never fails. Rows without a usable English label are dropped and
// rows repeating a (name, natural key) pair within the page are collapsed.
// Observed always counts the raw rows so the driver can spot the last page.
func (p *Parser) Parse(batch models.RawBatch) models.ParsedBatch {
	if batch.Degraded {
		return models.ParsedBatch{}
	}

	// a blank 200 is not a SPARQL result and must not read as the last page
	if len(bytes.TrimSpace(batch.Body)) == 0 {
		p.logger.WarnWithFields("Blank page, treating as empty", map[string]interface{}{
			"offset":     batch.Unit.Start,
			"error_type": herrors.ErrorTypeParsing,
		})
		return models.ParsedBatch{Malformed: true}
	}

	var resp sparqlResponse
	if err := json.Unmarshal(batch.Body, &resp); err != nil || resp.Results == nil {
		log := p.logger
		if err != nil {
			log = log.WithError(err)
		}
		log.WarnWithFields("Unparseable page, treating as empty", map[string]interface{}{
			"offset":     batch.Unit.Start,
			"bytes":      len(batch.Body),
			"error_type": herrors.ErrorTypeParsing,
		})
		return models.ParsedBatch{Malformed: true}
	}

	bindings := resp.Results.Bindings
	type key struct{ name, id string }
	seen := make(map[key]struct{}, len(bindings))
	records := make([]models.Record, 0, len(bindings))

	for _, b := range bindings {
		name := b["gameLabel"].Value
		if name == "" || isEntityID(name) {
			continue
		}
		bggID := b["bggId"].Value

		k := key{name: name, id: bggID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		records = append(records, models.Record{
			NaturalKey: bggID,
			Name:       name,
			Year:       yearOf(b["date"].Value),
			Kind:       models.KindItem,
		})
	}

	dropped := len(bindings) - len(records)
	if dropped > 0 {
		p.logger.DebugWithFields("Dropped unlabelled or duplicate rows", map[string]interface{}{
			"offset":  batch.Unit.Start,
			"dropped": dropped,
		})
	}

	return models.ParsedBatch{Records: records, Observed: len(bindings)}
}

// isEntityID reports whether a label is just the item ID, e.g. "Q4115189",
// which the label service returns when no label exists in the language
func isEntityID(label string) bool {
	if len(label) < 2 || label[0] != 'Q' {
		return false
	}
	for _, r := range label[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// yearOf takes the year from an xsd:dateTime such as "2019-01-01T00:00:00Z"
func yearOf(date string) string {
	if len(date) < 4 {
		return date
	}
	return date[:4]
}
