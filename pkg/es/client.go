// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"careercoach-go/internal/config"
	"careercoach-go/internal/model"
	"careercoach-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ESClient *elasticsearch.Client

const interviewMapping = `{
	"mappings": {
		"properties": {
			"session_id": { "type": "keyword" },
			"owner_id": { "type": "long" },
			"title": { "type": "text" },
			"job_role": { "type": "text", "fields": { "raw": { "type": "keyword" } } },
			"difficulty": { "type": "keyword" },
			"skills": { "type": "keyword" },
			"transcript": { "type": "text" },
			"turn_count": { "type": "integer" },
			"archive_key": { "type": "keyword" },
			"completed_at": { "type": "date" }
		}
	}
}`

// InitES 初始化 Elasticsearch 客户端并确保面试索引存在。
func InitES(esCfg config.ElasticsearchConfig) error {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return err
	}
	ESClient = client
	return createIndexIfNotExists(esCfg.IndexName)
}

// createIndexIfNotExists 检查索引是否存在，如果不存在则创建它
func createIndexIfNotExists(indexName string) error {
	res, err := ESClient.Indices.Exists([]string{indexName})
	if err != nil {
		log.Errorf("检查索引是否存在时出错: %v", err)
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	created, err := ESClient.Indices.Create(indexName, ESClient.Indices.Create.WithBody(strings.NewReader(interviewMapping)))
	if err != nil {
		log.Errorf("创建索引 '%s' 失败: %v", indexName, err)
		return err
	}
	defer created.Body.Close()
	if created.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", indexName, created.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("索引 '%s' 创建成功", indexName)
	return nil
}

// Indexer 写入和检索面试文档。
type Indexer interface {
	IndexInterview(ctx context.Context, doc model.InterviewDocument) error
	SearchInterviews(ctx context.Context, ownerID uint, query string, size int) ([]model.InterviewSearchHit, error)
}

type indexer struct {
	client *elasticsearch.Client
	index  string
}

// NewIndexer 创建一个面向指定索引的 Indexer。
func NewIndexer(client *elasticsearch.Client, index string) Indexer {
	return &indexer{client: client, index: index}
}

// IndexInterview 以 session_id 作为文档 ID 写入，重复归档会覆盖旧文档。
func (i *indexer) IndexInterview(ctx context.Context, doc model.InterviewDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: doc.SessionID,
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index document")
	}
	return nil
}

// SearchInterviews 在当前用户的面试记录中做全文检索。
func (i *indexer) SearchInterviews(ctx context.Context, ownerID uint, query string, size int) ([]model.InterviewSearchHit, error) {
	if size <= 0 {
		size = 10
	}
	esQuery := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"title^2", "job_role^2", "skills", "transcript"},
					},
				},
				"filter": []map[string]interface{}{
					{"term": map[string]interface{}{"owner_id": ownerID}},
				},
			},
		},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"transcript": map[string]interface{}{"fragment_size": 160, "number_of_fragments": 1},
			},
		},
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source    model.InterviewDocument `json:"_source"`
				Score     float64                 `json:"_score"`
				Highlight map[string][]string     `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]model.InterviewSearchHit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		highlight := ""
		if frags := h.Highlight["transcript"]; len(frags) > 0 {
			highlight = frags[0]
		}
		hits = append(hits, model.InterviewSearchHit{
			SessionID:   h.Source.SessionID,
			Title:       h.Source.Title,
			JobRole:     h.Source.JobRole,
			Difficulty:  h.Source.Difficulty,
			Skills:      h.Source.Skills,
			Highlight:   highlight,
			Score:       h.Score,
			CompletedAt: h.Source.CompletedAt,
		})
	}
	return hits, nil
}
