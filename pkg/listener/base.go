package listener

import "github.com/kfsoftware/agritrace/pkg/monitor"

type Provider string

const (
	MeiliSearch   Provider = "meilisearch"
	ElasticSearch Provider = "elasticsearch"
)

var (
	_ monitor.Sink = ElasticSearchStorage{}
	_ monitor.Sink = MeilisearchStorage{}
)
