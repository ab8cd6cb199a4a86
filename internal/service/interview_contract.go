package service

import (
	"encoding/json"
	"strings"

	"careercoach-go/internal/model"
	"careercoach-go/pkg/llm"
)

// DefaultFallbackStatement 在模型输出为空白时使用，保证每一轮都有可以播放的内容。
const DefaultFallbackStatement = "Sorry, could you say that again?"

var contractKeys = []string{"statement", "animationToPlay", "isCompleted"}

// ContractValidator 把模型的原始输出归一化为 ModelContract，从不返回错误。
type ContractValidator struct {
	fallbackStatement string
}

// NewContractValidator 创建校验器；fallbackStatement 为空时使用默认值。
func NewContractValidator(fallbackStatement string) *ContractValidator {
	if strings.TrimSpace(fallbackStatement) == "" {
		fallbackStatement = DefaultFallbackStatement
	}
	return &ContractValidator{fallbackStatement: fallbackStatement}
}

// Validate 只有在输出恰好包含三个字段且类型正确时才视为遵守契约。
// 动画不在 allowed 中时保留语句与完成标记，动画替换为 NeutralAnimation。
func (v *ContractValidator) Validate(raw string, allowed []string) model.ContractResult {
	cleaned := llm.StripCodeFence(raw)

	contract, ok := parseContract(cleaned)
	if !ok {
		// 兜底语句保留模型原文，只去掉首尾空白，代码围栏等格式原样保留
		statement := strings.TrimSpace(raw)
		if statement == "" {
			statement = v.fallbackStatement
		}
		return model.ContractResult{
			Contract: model.ModelContract{
				Statement:       statement,
				AnimationToPlay: NeutralAnimation,
				IsCompleted:     false,
			},
			Outcome: model.ContractFallback,
		}
	}

	if !contains(allowed, contract.AnimationToPlay) {
		contract.AnimationToPlay = NeutralAnimation
		return model.ContractResult{Contract: contract, Outcome: model.ContractFallback}
	}
	return model.ContractResult{Contract: contract, Outcome: model.ContractHonored}
}

func parseContract(text string) (model.ModelContract, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &fields); err != nil || fields == nil {
		return model.ModelContract{}, false
	}
	if len(fields) != len(contractKeys) {
		return model.ModelContract{}, false
	}
	for _, k := range contractKeys {
		if _, ok := fields[k]; !ok {
			return model.ModelContract{}, false
		}
	}

	var c model.ModelContract
	if json.Unmarshal(fields["statement"], &c.Statement) != nil ||
		json.Unmarshal(fields["animationToPlay"], &c.AnimationToPlay) != nil ||
		json.Unmarshal(fields["isCompleted"], &c.IsCompleted) != nil {
		return model.ModelContract{}, false
	}
	// null 能被解码为零值，需要单独排除
	if isNull(fields["statement"]) || isNull(fields["animationToPlay"]) || isNull(fields["isCompleted"]) {
		return model.ModelContract{}, false
	}
	if strings.TrimSpace(c.Statement) == "" {
		return model.ModelContract{}, false
	}
	return c, true
}

func isNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
