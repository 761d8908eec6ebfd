package interceptors_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laplaque/llmguard/internal/interceptors"
	"github.com/laplaque/llmguard/internal/types"
)

type validatingRegistry struct {
	known     map[string]bool
	validArgs map[string]bool
}

func (r validatingRegistry) Has(name string) bool { return r.known[name] }
func (r validatingRegistry) ValidateArguments(name string, args map[string]any) bool {
	return r.validArgs[name]
}

func TestGroundToolCalls_NoToolCallsPasses(t *testing.T) {
	res := interceptors.GroundToolCalls(types.Response{}, nil)
	assert.False(t, res.Blocked())
}

func TestGroundToolCalls_NilRegistrySkipsGrounding(t *testing.T) {
	resp := types.Response{ToolCalls: []types.ToolCall{{FunctionName: "whatever"}}}
	res := interceptors.GroundToolCalls(resp, nil)
	assert.False(t, res.Blocked())
}

func TestGroundToolCalls_UngroundedCallBlocks(t *testing.T) {
	resp := types.Response{ToolCalls: []types.ToolCall{{ID: "1", FunctionName: "delete_everything"}}}
	res := interceptors.GroundToolCalls(resp, fakeRegistry{known: map[string]bool{}})
	require.True(t, res.Blocked())
	assert.Equal(t, types.CodeToolNotGrounded, res.Violations()[0].Code)
}

func TestGroundToolCalls_GroundedCallPasses(t *testing.T) {
	resp := types.Response{ToolCalls: []types.ToolCall{{ID: "1", FunctionName: "get_weather", Arguments: `{"city":"nyc"}`}}}
	res := interceptors.GroundToolCalls(resp, fakeRegistry{known: map[string]bool{"get_weather": true}})
	assert.False(t, res.Blocked())
}

func TestGroundToolCalls_InvalidArgumentJSONBlocks(t *testing.T) {
	resp := types.Response{ToolCalls: []types.ToolCall{{ID: "1", FunctionName: "get_weather", Arguments: `not json`}}}
	reg := validatingRegistry{known: map[string]bool{"get_weather": true}, validArgs: map[string]bool{"get_weather": true}}
	res := interceptors.GroundToolCalls(resp, reg)
	require.True(t, res.Blocked())
	assert.Equal(t, types.CodeToolNotGrounded, res.Violations()[0].Code)
}

func TestGroundToolCalls_FailingArgumentValidationBlocks(t *testing.T) {
	resp := types.Response{ToolCalls: []types.ToolCall{{ID: "1", FunctionName: "get_weather", Arguments: `{"city":"nyc"}`}}}
	reg := validatingRegistry{known: map[string]bool{"get_weather": true}, validArgs: map[string]bool{}}
	res := interceptors.GroundToolCalls(resp, reg)
	require.True(t, res.Blocked())
}
