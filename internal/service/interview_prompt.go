package service

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"careercoach-go/internal/model"
)

// NeutralAnimation 是兜底契约使用的动画。
const NeutralAnimation = "talk"

// AnimationGroup 是一组可互换的动画变体，每次构建提示词时只挑其中一个。
type AnimationGroup struct {
	Name string
	Tags []string
}

// DefaultAnimationGroups 的顺序是固定的，保证相同随机种子产生相同结果。
var DefaultAnimationGroups = []AnimationGroup{
	{Name: "idle", Tags: []string{"idle"}},
	{Name: "talk", Tags: []string{"talk", "talk2"}},
	{Name: "clap", Tags: []string{"clap"}},
}

// TurnPromptInput 是构建面试官提示词所需的会话配置。
type TurnPromptInput struct {
	JobRole    string
	Difficulty model.Difficulty
	Skills     []string
	Notes      string
}

// PromptBuilder 生成面试官的系统提示词，可并发使用。
type PromptBuilder struct {
	mu     sync.Mutex
	rng    *rand.Rand
	groups []AnimationGroup
}

// NewPromptBuilder 使用给定的随机源创建构建器。
func NewPromptBuilder(src rand.Source) *PromptBuilder {
	return &PromptBuilder{rng: rand.New(src), groups: DefaultAnimationGroups}
}

// pickAnimations 每组选一个标签，再打乱顺序。
func (b *PromptBuilder) pickAnimations() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	picked := make([]string, 0, len(b.groups))
	for _, g := range b.groups {
		picked = append(picked, g.Tags[b.rng.Intn(len(g.Tags))])
	}
	b.rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	return picked
}

// exampleAnimation 返回示例回复使用的动画，必须是本轮抽中的标签之一。
// 优先使用中性动画组中被抽中的变体。
func (b *PromptBuilder) exampleAnimation(animations []string) string {
	for _, g := range b.groups {
		if g.Name != NeutralAnimation {
			continue
		}
		for _, a := range animations {
			if contains(g.Tags, a) {
				return a
			}
		}
	}
	if len(animations) > 0 {
		return animations[0]
	}
	return NeutralAnimation
}

// BuildTurnPrompt 返回提示词以及本轮允许的动画列表。
func (b *PromptBuilder) BuildTurnPrompt(in TurnPromptInput) (string, []string) {
	animations := b.pickAnimations()
	animationsJSON, _ := json.Marshal(animations)
	exampleJSON, _ := json.Marshal(b.exampleAnimation(animations))

	var sb strings.Builder
	fmt.Fprintf(&sb, "You are an interviewer conducting a mock interview for the role of %q. The difficulty level is %q.",
		in.JobRole, strings.ToLower(string(in.Difficulty)))

	if len(in.Skills) > 0 {
		fmt.Fprintf(&sb, " Focus on evaluating the following skills: %s.", strings.Join(in.Skills, ", "))
	}
	if notes := strings.TrimSpace(in.Notes); notes != "" {
		fmt.Fprintf(&sb, " Additional notes: %s.", notes)
	}

	sb.WriteString(`

Do not mention any company or company name.
Ask open-ended, challenging questions about the role.
After each answer from the candidate, give brief constructive feedback or ask a follow-up question.

Your response must be exactly one raw JSON object with this structure and nothing else:

{
  "animationToPlay": "<one animation from this list: `)
	sb.Write(animationsJSON)
	sb.WriteString(`>",
  "statement": "<your statement or question>",
  "isCompleted": <true or false>
}

Rules:
- Choose "animationToPlay" from the list above to match the intent of your statement.
- Set "isCompleted" to true only on the final statement that concludes the interview.
- Do not write any text before or after the JSON object.
- Do not wrap the JSON object in code fences or quotes.
- The whole response must parse as JSON on its own.

Example response:

{
  "animationToPlay": `)
	sb.Write(exampleJSON)
	sb.WriteString(`,
  "statement": "Can you explain how you would design a rate limiter?",
  "isCompleted": false
}

Begin now.
`)
	return sb.String(), animations
}
