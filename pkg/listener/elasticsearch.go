package listener

import (
	"bytes"
	"encoding/json"
	"fmt"

	elasticsearch7 "github.com/elastic/go-elasticsearch/v7"
	"github.com/kfsoftware/agritrace/pkg/monitor"
	"github.com/kfsoftware/agritrace/pkg/transformation"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type ElasticSearchStorage struct {
	client    *elasticsearch7.Client
	indexName string
}

func NewElasticStorage(client *elasticsearch7.Client, indexName string) ElasticSearchStorage {
	return ElasticSearchStorage{
		client:    client,
		indexName: indexName,
	}
}

func (e ElasticSearchStorage) StoreBulk(snapshots []monitor.Snapshot) error {
	docs := transformation.SnapshotsToDocuments(snapshots)
	var buf bytes.Buffer
	for _, document := range docs.Sorted() {
		data, err := json.Marshal(document.Data)
		if err != nil {
			return err
		}
		meta := []byte(fmt.Sprintf(`{ "index" : {"_index": "%s",  "_id" : "%s" } }%s`, e.indexName, document.PrimaryKey, "\n"))
		data = append(data, "\n"...)
		buf.Grow(len(meta) + len(data))
		buf.Write(meta)
		buf.Write(data)
	}
	log.Infof("Items added=%d", len(docs.Documents))
	if buf.Len() == 0 {
		return nil
	}
	res, err := e.client.Bulk(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		var raw map[string]interface{}
		if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
			return errors.Errorf("Failure to parse response body: %s", err)
		}
		reason, _ := raw["error"].(map[string]interface{})
		return errors.Errorf("Error: [%d] %v: %v",
			res.StatusCode,
			reason["type"],
			reason["reason"],
		)
	}
	return nil
}
