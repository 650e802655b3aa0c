package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelier-dev/atelier/pkg/workspace"
)

func TestSystemPrompt(t *testing.T) {
	t.Run("every role has a distinct prompt", func(t *testing.T) {
		seen := make(map[string]workspace.AgentRole)
		for _, role := range Roles() {
			prompt := SystemPrompt(role)
			require.NotEmpty(t, prompt, "role %s", role)

			if other, dup := seen[prompt]; dup {
				t.Fatalf("roles %s and %s share a prompt", role, other)
			}
			seen[prompt] = role
		}
	})

	t.Run("every prompt names the collaborative lab", func(t *testing.T) {
		for _, role := range Roles() {
			assert.Contains(t, SystemPrompt(role), "collaborative AI research lab")
		}
	})

	t.Run("unknown role has no prompt", func(t *testing.T) {
		assert.Empty(t, SystemPrompt(workspace.AgentRole("astrologer")))
	})
}

func TestRolesMatchValidation(t *testing.T) {
	for _, role := range Roles() {
		assert.NoError(t, role.Validate(), "role %s", role)
	}
	assert.Len(t, Roles(), 6)
}

func TestBuildPrompt(t *testing.T) {
	t.Run("without context", func(t *testing.T) {
		assert.Equal(t, "summarize this", BuildPrompt("summarize this", ""))
	})

	t.Run("with context", func(t *testing.T) {
		got := BuildPrompt("summarize this", "the paper text")
		assert.Equal(t, "Context: the paper text\n\nUser Query: summarize this", got)
	})
}

func TestNewGeminiResponderRequiresKey(t *testing.T) {
	_, err := NewGeminiResponder(context.Background(), "", DefaultModel)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}
