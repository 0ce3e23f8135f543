package wikidata

import (
	"fmt"
	"net/url"

	"harvester/pkg/config"
	"harvester/pkg/fetcher"
	"harvester/pkg/httpclient"
	"harvester/pkg/logger"
	"harvester/pkg/models"
)

// SourceName identifies the Wikidata sweep in logs, metrics and the CLI
const SourceName = "wikidata"

// P577 is the publication date, P2339 the BoardGameGeek ID.
// ORDER BY keeps OFFSET paging stable between invocations.
const queryTemplate = `SELECT DISTINCT ?game ?gameLabel ?date ?bggId WHERE {
  ?game wdt:P31 wd:%s .
  OPTIONAL { ?game wdt:P577 ?date }
  OPTIONAL { ?game wdt:P2339 ?bggId }
  SERVICE wikibase:label { bd:serviceParam wikibase:language "%s" . }
}
ORDER BY ?game
LIMIT %d
OFFSET %d
`

// Query renders the SPARQL query for one page
func Query(classID, language string, limit, offset int64) string {
	return fmt.Sprintf(queryTemplate, classID, language, limit, offset)
}

// NewHTTPClient returns a client identifying itself as Wikidata asks of bots
func NewHTTPClient(cfg config.WikidataConfig, log logger.Logger) *httpclient.Client {
	client := httpclient.NewClient(cfg.Timeout, log)
	client.SetHeaders(map[string]string{
		"User-Agent": cfg.UserAgent,
		"Accept":     "application/sparql-results+json",
	})
	return client
}

// URLBuilder renders the endpoint URL for the page starting at unit.Start
func URLBuilder(cfg config.WikidataConfig) fetcher.URLBuilder {
	return func(unit models.WorkUnit) string {
		q := url.Values{}
		q.Set("query", Query(cfg.ClassID, cfg.Language, unit.Width(), unit.Start))
		q.Set("format", "json")
		return cfg.Endpoint + "?" + q.Encode()
	}
}
