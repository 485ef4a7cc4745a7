package ws

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kero-live/kero-server/internal/game"
	"github.com/kero-live/kero-server/internal/types"
)

func TestToCommand_PrefixedTypes(t *testing.T) {
	cmd, ok := toCommand("p1", types.ClientMessage{Type: "normal:seek", Time: 42.5})
	require.True(t, ok)
	assert.Equal(t, game.CmdSeek, cmd.Name)
	assert.Equal(t, "p1", cmd.Participant)
	assert.Equal(t, 42.5, cmd.Time)

	cmd, ok = toCommand("p1", types.ClientMessage{Type: "score:frame", Time: 1.5, Samples: []float32{0.1}, SampleRate: 48000})
	require.True(t, ok)
	assert.Equal(t, game.CmdFrame, cmd.Name)
	assert.Equal(t, 48000, cmd.SampleRate)
	assert.Len(t, cmd.Samples, 1)

	cmd, ok = toCommand("p1", types.ClientMessage{Type: "quiz:answer", QuestionIndex: 2, AnswerIndex: 3})
	require.True(t, ok)
	assert.Equal(t, game.CmdAnswer, cmd.Name)
	assert.Equal(t, 2, cmd.QuestionIndex)
	assert.Equal(t, 3, cmd.AnswerIndex)
}

func TestToCommand_RejectsUnknown(t *testing.T) {
	_, ok := toCommand("p1", types.ClientMessage{Type: "start-game"})
	assert.False(t, ok, "unprefixed types are not game commands")

	_, ok = toCommand("p1", types.ClientMessage{Type: "normal:self-destruct"})
	assert.False(t, ok)
}
