package service

import (
	"math/rand"
	"strings"
	"testing"

	"careercoach-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTurnPrompt_DeterministicForSeed(t *testing.T) {
	in := TurnPromptInput{
		JobRole:    "Backend Engineer",
		Difficulty: model.DifficultyAdvanced,
		Skills:     []string{"Go", "SQL"},
		Notes:      "focus on concurrency",
	}

	p1, a1 := NewPromptBuilder(rand.NewSource(42)).BuildTurnPrompt(in)
	p2, a2 := NewPromptBuilder(rand.NewSource(42)).BuildTurnPrompt(in)

	assert.Equal(t, p1, p2)
	assert.Equal(t, a1, a2)
}

func TestBuildTurnPrompt_OnePerGroup(t *testing.T) {
	seen := map[string]bool{}
	for seed := int64(1); seed <= 50; seed++ {
		_, animations := NewPromptBuilder(rand.NewSource(seed)).BuildTurnPrompt(TurnPromptInput{JobRole: "x", Difficulty: model.DifficultyBeginner})

		assert.Len(t, animations, len(DefaultAnimationGroups))
		assert.Contains(t, animations, "idle")
		assert.Contains(t, animations, "clap")
		talks := 0
		for _, a := range animations {
			if a == "talk" || a == "talk2" {
				talks++
			}
			seen[a] = true
		}
		assert.Equal(t, 1, talks, "exactly one talk variant per prompt")
	}
	assert.True(t, seen["talk"] && seen["talk2"], "both talk variants should be reachable")
}

func TestBuildTurnPrompt_OptionalClauses(t *testing.T) {
	tests := []struct {
		name        string
		in          TurnPromptInput
		wantSkills  bool
		wantNotes   bool
		wantContain []string
	}{
		{
			name:        "all fields",
			in:          TurnPromptInput{JobRole: "Data Analyst", Difficulty: model.DifficultyIntermediate, Skills: []string{"SQL", "Excel"}, Notes: "junior team"},
			wantSkills:  true,
			wantNotes:   true,
			wantContain: []string{`"Data Analyst"`, `"intermediate"`, "SQL, Excel", "junior team"},
		},
		{
			name:        "no skills no notes",
			in:          TurnPromptInput{JobRole: "Designer", Difficulty: model.DifficultyAdvanced, Notes: "   "},
			wantContain: []string{`"Designer"`, `"advanced"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt, animations := NewPromptBuilder(rand.NewSource(7)).BuildTurnPrompt(tt.in)

			assert.Equal(t, tt.wantSkills, strings.Contains(prompt, "Focus on evaluating the following skills"))
			assert.Equal(t, tt.wantNotes, strings.Contains(prompt, "Additional notes"))
			for _, s := range tt.wantContain {
				assert.Contains(t, prompt, s)
			}
			for _, key := range []string{`"animationToPlay"`, `"statement"`, `"isCompleted"`} {
				assert.Contains(t, prompt, key)
			}
			assert.Contains(t, prompt, "code fences")
			for _, a := range animations {
				assert.Contains(t, prompt, `"`+a+`"`)
			}
			assert.NotContains(t, prompt, string(tt.in.Difficulty))
		})
	}
}

func exampleResponse(t *testing.T, prompt string) string {
	t.Helper()
	_, rest, ok := strings.Cut(prompt, "Example response:")
	require.True(t, ok)
	example, _, ok := strings.Cut(rest, "Begin now.")
	require.True(t, ok)
	return strings.TrimSpace(example)
}

func TestBuildTurnPrompt_ExampleUsesOfferedAnimation(t *testing.T) {
	validator := NewContractValidator("")
	for seed := int64(1); seed <= 100; seed++ {
		prompt, animations := NewPromptBuilder(rand.NewSource(seed)).BuildTurnPrompt(TurnPromptInput{JobRole: "x", Difficulty: model.DifficultyBeginner})

		res := validator.Validate(exampleResponse(t, prompt), animations)
		require.Equal(t, model.ContractHonored, res.Outcome, "seed %d: example must satisfy its own contract (allowed %v)", seed, animations)
		assert.Contains(t, []string{"talk", "talk2"}, res.Contract.AnimationToPlay)
	}
}

func TestBuildTurnPrompt_ShufflesOrder(t *testing.T) {
	orders := map[string]bool{}
	firsts := map[string]bool{}
	for seed := int64(1); seed <= 50; seed++ {
		_, animations := NewPromptBuilder(rand.NewSource(seed)).BuildTurnPrompt(TurnPromptInput{JobRole: "x", Difficulty: model.DifficultyBeginner})
		orders[strings.Join(animations, ",")] = true
		firsts[strings.TrimSuffix(animations[0], "2")] = true
	}
	assert.Greater(t, len(orders), 1)
	assert.Len(t, firsts, len(DefaultAnimationGroups), "every group should be able to come first")
}
