package model

// ModelContract 是模型每一轮必须返回的三字段 JSON。
type ModelContract struct {
	Statement       string `json:"statement"`
	AnimationToPlay string `json:"animationToPlay"`
	IsCompleted     bool   `json:"isCompleted"`
}

// ContractOutcome 标记契约是被模型遵守，还是走了兜底。
type ContractOutcome string

const (
	ContractHonored  ContractOutcome = "honored"
	ContractFallback ContractOutcome = "fallback"
)

// ContractResult 是校验器的输出：最终使用的契约以及它的来源。
type ContractResult struct {
	Contract ModelContract
	Outcome  ContractOutcome
}

// Honored 报告模型输出是否原样满足契约。
func (r ContractResult) Honored() bool {
	return r.Outcome == ContractHonored
}

// TurnResult 是一轮对话处理完成后返回给客户端的内容。
// Audio 为 nil 表示本轮没有语音。
type TurnResult struct {
	Contract     ModelContract
	Outcome      ContractOutcome
	Audio        []byte
	Conversation []Turn
}

// Honored 报告本轮模型输出是否原样满足契约。
func (r TurnResult) Honored() bool {
	return r.Outcome == ContractHonored
}
