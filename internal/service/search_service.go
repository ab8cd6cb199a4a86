package service

import (
	"context"
	"fmt"
	"strings"

	"careercoach-go/internal/model"
	"careercoach-go/pkg/es"
	"careercoach-go/pkg/log"
)

// SearchService 在已归档的面试记录中进行全文检索。
type SearchService interface {
	SearchInterviews(ctx context.Context, ownerID uint, query string, topK int) ([]model.InterviewSearchHit, error)
}

type searchService struct {
	indexer es.Indexer
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(indexer es.Indexer) SearchService {
	return &searchService{indexer: indexer}
}

func (s *searchService) SearchInterviews(ctx context.Context, ownerID uint, query string, topK int) ([]model.InterviewSearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.InterviewSearchHit{}, nil
	}
	if topK <= 0 || topK > 50 {
		topK = 10
	}
	hits, err := s.indexer.SearchInterviews(ctx, ownerID, query, topK)
	if err != nil {
		log.Errorf("[SearchService] 检索面试记录失败, query: '%s', error: %v", query, err)
		return nil, fmt.Errorf("failed to search interviews: %w", err)
	}
	return hits, nil
}
