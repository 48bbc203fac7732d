package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

func (a *AnalyticsClientImpl) BulkIndex(
	ctx context.Context,
	metaInfo []MetaMap,
	documentInfo []DocumentMap,
	index string,
) error {
	var buf bytes.Buffer
	for i, document := range documentInfo {
		var meta MetaMap
		if metaInfo != nil && i < len(metaInfo) {
			meta = metaInfo[i]
		} else {
			meta = MetaMap{"index": map[string]interface{}{}}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("error marshaling meta to bulk index: %w", err)
		}
		buf.Write(metaJSON)
		buf.WriteByte('\n')

		documentJSON, err := json.Marshal(document)
		if err != nil {
			return fmt.Errorf("error marshaling document to bulk index: %w", err)
		}
		buf.Write(documentJSON)
		buf.WriteByte('\n')
	}

	res, err := a.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		a.es.Bulk.WithIndex(index),
		a.es.Bulk.WithContext(ctx),
		a.es.Bulk.WithRefresh(a.refreshRate),
	)
	if err != nil {
		return fmt.Errorf("error bulk indexing: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}
	return nil
}

func (a *AnalyticsClientImpl) Index(
	ctx context.Context,
	metaInfo MetaMap,
	documentInfo DocumentMap,
	index string,
) error {
	if metaInfo == nil {
		return a.BulkIndex(ctx, nil, []DocumentMap{documentInfo}, index)
	}
	return a.BulkIndex(ctx, []MetaMap{metaInfo}, []DocumentMap{documentInfo}, index)
}
