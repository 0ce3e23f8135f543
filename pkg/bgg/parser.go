package bgg

import (
	"bytes"
	"encoding/xml"
	"strings"

	herrors "harvester/pkg/errors"
	"harvester/pkg/logger"
	"harvester/pkg/models"
)

type thingItems struct {
	XMLName xml.Name    `xml:"items"`
	Items   []thingItem `xml:"item"`
}

type thingItem struct {
	ID            string      `xml:"id,attr"`
	Type          string      `xml:"type,attr"`
	Names         []thingName `xml:"name"`
	YearPublished *valueAttr  `xml:"yearpublished"`
}

type thingName struct {
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
}

type valueAttr struct {
	Value string `xml:"value,attr"`
}

// Parser turns a thing API response into records
type Parser struct {
	logger logger.Logger
}

// NewParser creates a BGG response parser
func NewParser(log logger.Logger) *Parser {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Parser{logger: log.WithField("source", SourceName)}
}

// Parse never fails. A body that is not a thing response yields no records.
func (p *Parser) Parse(batch models.RawBatch) models.ParsedBatch {
	if len(bytes.TrimSpace(batch.Body)) == 0 {
		return models.ParsedBatch{}
	}

	var doc thingItems
	if err := xml.Unmarshal(batch.Body, &doc); err != nil {
		p.logger.WithError(err).WarnWithFields("Unparseable batch, treating as empty", map[string]interface{}{
			"start":      batch.Unit.Start,
			"end":        batch.Unit.End,
			"bytes":      len(batch.Body),
			"error_type": herrors.ErrorTypeParsing,
		})
		return models.ParsedBatch{Malformed: true}
	}

	records := make([]models.Record, 0, len(doc.Items))
	for _, item := range doc.Items {
		rec := models.Record{
			NaturalKey: item.ID,
			Name:       primaryName(item.Names),
			Kind:       kindOf(item.Type),
		}
		if item.YearPublished != nil {
			rec.Year = item.YearPublished.Value
		}
		records = append(records, rec)
	}

	return models.ParsedBatch{Records: records, Observed: len(doc.Items)}
}

func primaryName(names []thingName) string {
	for _, n := range names {
		if n.Type == "primary" {
			return n.Value
		}
	}
	return ""
}

// kindOf maps BGG thing types; expansions of any product line are variants
func kindOf(thingType string) models.Kind {
	if strings.HasSuffix(thingType, "expansion") {
		return models.KindVariant
	}
	return models.KindItem
}
