package bgg

import (
	"net/url"
	"strconv"
	"strings"

	"harvester/pkg/config"
	"harvester/pkg/fetcher"
	"harvester/pkg/httpclient"
	"harvester/pkg/logger"
	"harvester/pkg/models"
)

// SourceName identifies the BGG sweep in logs, metrics and the CLI
const SourceName = "bgg"

// NewHTTPClient returns a client carrying the bearer token, if any
func NewHTTPClient(cfg config.BGGConfig, log logger.Logger) *httpclient.Client {
	client := httpclient.NewClient(cfg.Timeout, log)
	client.SetHeaders(map[string]string{
		"Accept":     "application/xml",
		"User-Agent": "harvester/1.0 (+catalog sweep)",
	})
	if cfg.Token != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.Token)
	}
	return client
}

// URLBuilder renders the thing endpoint URL listing every ID of a unit
func URLBuilder(apiURL string, types []string) fetcher.URLBuilder {
	typeParam := strings.Join(types, ",")

	return func(unit models.WorkUnit) string {
		ids := make([]string, 0, unit.Width())
		for id := unit.Start; id <= unit.End; id++ {
			ids = append(ids, strconv.FormatInt(id, 10))
		}

		q := url.Values{}
		q.Set("id", strings.Join(ids, ","))
		if typeParam != "" {
			q.Set("type", typeParam)
		}

		sep := "?"
		if strings.Contains(apiURL, "?") {
			sep = "&"
		}
		return apiURL + sep + q.Encode()
	}
}
