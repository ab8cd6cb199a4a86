package model

import (
	"time"

	"gorm.io/datatypes"
)

// RoadmapNodePosition 是节点在画布上的坐标。
type RoadmapNodePosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// RoadmapNodeData 是节点展示的内容。
type RoadmapNodeData struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Link        string `json:"link,omitempty"`
}

// RoadmapNode 是学习路线图中的一个节点。
type RoadmapNode struct {
	ID       string              `json:"id"`
	Type     string              `json:"type"`
	Position RoadmapNodePosition `json:"position"`
	Data     RoadmapNodeData     `json:"data"`
}

// RoadmapEdge 连接两个节点（父 -> 子）。
type RoadmapEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// RoadmapPayload 是模型在严格模式下必须返回的路线图结构。
type RoadmapPayload struct {
	RoadmapTitle string        `json:"roadmapTitle"`
	Description  string        `json:"description"`
	Duration     string        `json:"duration"`
	InitialNodes []RoadmapNode `json:"initialNodes"`
	InitialEdges []RoadmapEdge `json:"initialEdges"`
}

// Roadmap 对应 roadmaps 表，节点与边以 JSON 列保存。
type Roadmap struct {
	ID          uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerID     uint           `gorm:"index;not null" json:"ownerId"`
	Title       string         `gorm:"type:varchar(255);not null" json:"roadmapTitle"`
	Description string         `gorm:"type:text" json:"description"`
	Duration    string         `gorm:"type:varchar(64)" json:"duration"`
	Nodes       datatypes.JSON `gorm:"type:json" json:"initialNodes"`
	Edges       datatypes.JSON `gorm:"type:json" json:"initialEdges"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Roadmap) TableName() string {
	return "roadmaps"
}
