package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"careercoach-go/internal/model"
	"careercoach-go/internal/repository"
	"careercoach-go/pkg/llm"
	"careercoach-go/pkg/log"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const careerCoachSystemPrompt = "You are a supportive and professional AI career coach. Speak like a friendly mentor."

const roadmapGenerationPrompt = `You are a backend data generator. Your only task is to return valid JSON, with no markdown and no explanations.

Generate a career learning roadmap as a single JSON object showing progression from fundamentals to advanced topics for the requested career path.

Output format:

{
  "roadmapTitle": "Your title here",
  "description": "A 3-5 line summary of the roadmap for this career path",
  "duration": "1-2 years",
  "initialNodes": [ ... ],
  "initialEdges": [ ... ]
}

Each node:

{
  "id": "1",
  "type": "turbo",
  "position": { "x": 0, "y": 0 },
  "data": {
    "title": "Skill title",
    "description": "What this covers and why it matters",
    "link": "https://relevant-learning-resource.com"
  }
}

Each edge connects a parent to a child:

{ "id": "e1-2", "source": "1", "target": "2" }

Rules:
- Produce 20-25 nodes with unique string ids "1", "2", ...
- y increases by exactly 300 per learning level starting at 0; siblings are at least 300 apart on x.
- Include 3-4 specialization branches with at least 3 nodes each.
- Every node is connected; edges reference existing node ids only.
- Use real tools, frameworks and concepts for the domain.
- Do not wrap the output in code fences and do not return JSON as a string.`

// RoadmapRequest 是生成路线图的输入。Image 为可选的图片 URL 或 data URL（例如简历截图）。
type RoadmapRequest struct {
	Position string
	Skills   string
	Prompt   string
	Image    string
}

// RoadmapService 负责生成与查询学习路线图。
type RoadmapService interface {
	Generate(ctx context.Context, ownerID uint, req RoadmapRequest) (*model.Roadmap, error)
	Get(ctx context.Context, ownerID uint, id uint) (*model.Roadmap, error)
	List(ctx context.Context, ownerID uint, search string) ([]model.Roadmap, error)
}

type roadmapService struct {
	repo       repository.RoadmapRepository
	completion llm.Client
}

// NewRoadmapService 创建一个新的 RoadmapService 实例。
func NewRoadmapService(repo repository.RoadmapRepository, completion llm.Client) RoadmapService {
	return &roadmapService{repo: repo, completion: completion}
}

// Generate 以严格模式调用模型，模型输出不是合法路线图时返回 ErrInvalidRoadmap。
func (s *roadmapService) Generate(ctx context.Context, ownerID uint, req RoadmapRequest) (*model.Roadmap, error) {
	if strings.TrimSpace(req.Position) == "" {
		return nil, fmt.Errorf("%w: position is required", ErrInvalidRoadmap)
	}
	instructions := req.Prompt
	if strings.TrimSpace(instructions) == "" {
		instructions = roadmapGenerationPrompt
	}
	userMessage := fmt.Sprintf("%s\n\nThis is the user's information:\nDream Position: %s\nCurrent Skills: %s",
		instructions, req.Position, req.Skills)

	var attachment *llm.Attachment
	if req.Image != "" {
		attachment = &llm.Attachment{URL: req.Image}
	}

	raw, err := s.completion.Complete(ctx,
		[]llm.Message{{Role: llm.RoleUser, Content: userMessage}},
		careerCoachSystemPrompt, attachment, true)
	if err != nil {
		if errors.Is(err, llm.ErrMalformedOutput) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRoadmap, err)
		}
		return nil, fmt.Errorf("%w: roadmap completion: %w", ErrUpstream, err)
	}

	var payload model.RoadmapPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoadmap, err)
	}
	if strings.TrimSpace(payload.RoadmapTitle) == "" || len(payload.InitialNodes) == 0 {
		return nil, fmt.Errorf("%w: missing title or nodes", ErrInvalidRoadmap)
	}

	nodes, err := json.Marshal(payload.InitialNodes)
	if err != nil {
		return nil, err
	}
	edges, err := json.Marshal(payload.InitialEdges)
	if err != nil {
		return nil, err
	}

	roadmap := &model.Roadmap{
		OwnerID:     ownerID,
		Title:       payload.RoadmapTitle,
		Description: payload.Description,
		Duration:    payload.Duration,
		Nodes:       datatypes.JSON(nodes),
		Edges:       datatypes.JSON(edges),
	}
	if err := s.repo.Create(ctx, roadmap); err != nil {
		return nil, fmt.Errorf("failed to save roadmap: %w", err)
	}
	log.Infow("路线图已生成", "roadmapId", roadmap.ID, "ownerId", ownerID, "nodes", len(payload.InitialNodes))
	return roadmap, nil
}

func (s *roadmapService) Get(ctx context.Context, ownerID uint, id uint) (*model.Roadmap, error) {
	roadmap, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoadmapNotFound
		}
		return nil, err
	}
	if roadmap.OwnerID != ownerID {
		return nil, ErrRoadmapNotFound
	}
	return roadmap, nil
}

func (s *roadmapService) List(ctx context.Context, ownerID uint, search string) ([]model.Roadmap, error) {
	return s.repo.Search(ctx, ownerID, strings.TrimSpace(search))
}
