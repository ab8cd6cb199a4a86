package service

import (
	"testing"

	"careercoach-go/internal/model"

	"github.com/stretchr/testify/assert"
)

var allowedForTest = []string{"clap", "talk2", "idle"}

func TestValidate_HonoredContract(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want model.ModelContract
	}{
		{
			name: "plain object",
			raw:  `{"statement":"Welcome.","animationToPlay":"idle","isCompleted":false}`,
			want: model.ModelContract{Statement: "Welcome.", AnimationToPlay: "idle", IsCompleted: false},
		},
		{
			name: "json fence",
			raw:  "```json\n{\"statement\":\"Great job!\",\"animationToPlay\":\"clap\",\"isCompleted\":true}\n```",
			want: model.ModelContract{Statement: "Great job!", AnimationToPlay: "clap", IsCompleted: true},
		},
		{
			name: "bare fence and whitespace",
			raw:  "  ```\n{\"statement\":\"Next?\",\"animationToPlay\":\"talk2\",\"isCompleted\":false}```  ",
			want: model.ModelContract{Statement: "Next?", AnimationToPlay: "talk2", IsCompleted: false},
		},
	}
	v := NewContractValidator("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.raw, allowedForTest)
			assert.Equal(t, model.ContractHonored, got.Outcome)
			assert.Equal(t, tt.want, got.Contract)
		})
	}
}

func TestValidate_FallbackNeverCompletes(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantStatement string
	}{
		{name: "prose", raw: "Sure! Here's my question: what is a closure?", wantStatement: "Sure! Here's my question: what is a closure?"},
		{name: "truncated json", raw: `{"statement":"Hel`, wantStatement: `{"statement":"Hel`},
		{name: "missing key", raw: `{"statement":"Hi","isCompleted":true}`, wantStatement: `{"statement":"Hi","isCompleted":true}`},
		{name: "extra key", raw: `{"statement":"Hi","animationToPlay":"idle","isCompleted":true,"mood":"happy"}`, wantStatement: `{"statement":"Hi","animationToPlay":"idle","isCompleted":true,"mood":"happy"}`},
		{name: "wrong type", raw: `{"statement":"Hi","animationToPlay":"idle","isCompleted":"yes"}`, wantStatement: `{"statement":"Hi","animationToPlay":"idle","isCompleted":"yes"}`},
		{name: "null statement", raw: `{"statement":null,"animationToPlay":"idle","isCompleted":true}`, wantStatement: `{"statement":null,"animationToPlay":"idle","isCompleted":true}`},
		{name: "empty statement", raw: `{"statement":"  ","animationToPlay":"idle","isCompleted":true}`, wantStatement: `{"statement":"  ","animationToPlay":"idle","isCompleted":true}`},
		{name: "array", raw: `["a","b"]`, wantStatement: `["a","b"]`},
		{name: "fenced prose keeps raw text", raw: "```\nJust text\n```", wantStatement: "```\nJust text\n```"},
		{name: "fenced truncated json", raw: "  ```json\n{\"statement\":\"Hel\n```\n", wantStatement: "```json\n{\"statement\":\"Hel\n```"},
		{name: "blank", raw: "   ", wantStatement: DefaultFallbackStatement},
	}
	v := NewContractValidator("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := v.Validate(tt.raw, allowedForTest)
			assert.Equal(t, model.ContractFallback, got.Outcome)
			assert.False(t, got.Contract.IsCompleted)
			assert.Equal(t, NeutralAnimation, got.Contract.AnimationToPlay)
			assert.Equal(t, tt.wantStatement, got.Contract.Statement)
			assert.NotEmpty(t, got.Contract.Statement)
		})
	}
}

func TestValidate_UnknownAnimationIsReplaced(t *testing.T) {
	got := NewContractValidator("").Validate(`{"statement":"Bye","animationToPlay":"dance","isCompleted":true}`, allowedForTest)

	assert.Equal(t, model.ContractFallback, got.Outcome)
	assert.Equal(t, "Bye", got.Contract.Statement)
	assert.Equal(t, NeutralAnimation, got.Contract.AnimationToPlay)
	assert.True(t, got.Contract.IsCompleted)
}

func TestValidate_CustomFallbackStatement(t *testing.T) {
	got := NewContractValidator("Please repeat.").Validate("", allowedForTest)
	assert.Equal(t, "Please repeat.", got.Contract.Statement)
}
