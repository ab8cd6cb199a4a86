package repository

import (
	"context"

	"careercoach-go/internal/model"

	"gorm.io/gorm"
)

// RoadmapRepository 定义了学习路线图的持久化操作。
type RoadmapRepository interface {
	Create(ctx context.Context, roadmap *model.Roadmap) error
	FindByID(ctx context.Context, id uint) (*model.Roadmap, error)
	// Search 按标题或描述模糊查询；keyword 为空时返回全部，按创建时间倒序。
	Search(ctx context.Context, ownerID uint, keyword string) ([]model.Roadmap, error)
}

type roadmapRepository struct {
	db *gorm.DB
}

// NewRoadmapRepository 创建一个新的 RoadmapRepository 实例。
func NewRoadmapRepository(db *gorm.DB) RoadmapRepository {
	return &roadmapRepository{db: db}
}

func (r *roadmapRepository) Create(ctx context.Context, roadmap *model.Roadmap) error {
	return r.db.WithContext(ctx).Create(roadmap).Error
}

func (r *roadmapRepository) FindByID(ctx context.Context, id uint) (*model.Roadmap, error) {
	var roadmap model.Roadmap
	if err := r.db.WithContext(ctx).First(&roadmap, id).Error; err != nil {
		return nil, err
	}
	return &roadmap, nil
}

func (r *roadmapRepository) Search(ctx context.Context, ownerID uint, keyword string) ([]model.Roadmap, error) {
	var roadmaps []model.Roadmap
	db := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if keyword != "" {
		like := "%" + keyword + "%"
		db = db.Where("title LIKE ? OR description LIKE ?", like, like)
	}
	err := db.Order("created_at DESC").Find(&roadmaps).Error
	return roadmaps, err
}
