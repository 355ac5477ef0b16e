package listener

import (
	"context"
	"math"
	"time"

	"github.com/kfsoftware/agritrace/pkg/monitor"
	"github.com/kfsoftware/agritrace/pkg/transformation"
	"github.com/meilisearch/meilisearch-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type MeilisearchStorage struct {
	client    meilisearch.ClientInterface
	indexName string
}

// NewMeilisearchStorage creates the index on first use.
func NewMeilisearchStorage(client meilisearch.ClientInterface, indexName string) (MeilisearchStorage, error) {
	storage := MeilisearchStorage{
		client:    client,
		indexName: indexName,
	}
	_, err := storage.createIndex(indexName)
	if err != nil {
		return storage, err
	}
	return storage, nil
}

func (m MeilisearchStorage) createIndex(indexName string) (*meilisearch.Index, error) {
	index, err := m.client.Indexes().Get(indexName)
	if err == nil {
		return index, nil
	}
	meiliErr, ok := errors.Cause(err).(*meilisearch.Error)
	if !ok || meiliErr.StatusCode != 404 {
		return nil, err
	}
	responseIndex, err := m.client.Indexes().Create(meilisearch.CreateIndexRequest{
		UID:        indexName,
		PrimaryKey: transformation.PrimaryKey,
		Name:       indexName,
	})
	if err != nil {
		return nil, err
	}
	err = m.waitForUpdate(responseIndex.UpdateID)
	if err != nil {
		return nil, err
	}
	asyncUpdate, err := m.client.Settings(indexName).UpdateRankingRules([]string{"desc(" + transformation.DateKey + ")"})
	if err != nil {
		return nil, err
	}
	err = m.waitForUpdate(asyncUpdate.UpdateID)
	if err != nil {
		return nil, err
	}
	return m.client.Indexes().Get(responseIndex.UID)
}

type IndexDoc = map[string]interface{}

func (m MeilisearchStorage) storeDocs(response *transformation.DocumentExtractionResponse) error {
	var documentsToAdd []IndexDoc
	keyDocsAdded := []string{}
	for _, document := range response.Sorted() {
		documentsToAdd = append(documentsToAdd, document.Data)
		keyDocsAdded = append(keyDocsAdded, document.PrimaryKey)
	}
	if len(documentsToAdd) == 0 {
		return nil
	}
	updateRes, err := m.client.Documents(m.indexName).AddOrUpdate(documentsToAdd)
	if err != nil {
		return err
	}
	err = m.waitForUpdate(updateRes.UpdateID)
	if err != nil {
		return err
	}
	log.Infof("Items added=%d %v", len(documentsToAdd), keyDocsAdded[:int(math.Min(float64(10), float64(len(keyDocsAdded))))])
	return nil
}

func (m MeilisearchStorage) waitForUpdate(updateID int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	log.Debugf("Update ID: %d", updateID)
	updateStatus, err := m.client.WaitForPendingUpdate(
		ctx,
		200*time.Millisecond,
		m.indexName,
		&meilisearch.AsyncUpdateID{UpdateID: updateID},
	)
	if err != nil {
		return err
	}
	log.Debugf("Update %d=%s", updateID, updateStatus)
	return nil
}

func (m MeilisearchStorage) StoreBulk(snapshots []monitor.Snapshot) error {
	return m.storeDocs(transformation.SnapshotsToDocuments(snapshots))
}
