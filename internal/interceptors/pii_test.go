package interceptors_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laplaque/llmguard/internal/interceptors"
	"github.com/laplaque/llmguard/internal/types"
)

func TestMaskRequest_Disabled_ReturnsUnchanged(t *testing.T) {
	req := userReq("email me at jane@example.com")
	res := interceptors.MaskRequest(req, false)
	require.False(t, res.Blocked())
	assert.Equal(t, "email me at jane@example.com", res.Value().Messages[0].TextContent)
}

func TestMaskRequest_RedactsEmail(t *testing.T) {
	req := userReq("email me at jane@example.com please")
	res := interceptors.MaskRequest(req, true)
	require.False(t, res.Blocked())
	assert.Contains(t, res.Value().Messages[0].TextContent, "[EMAIL]")
	assert.NotContains(t, res.Value().Messages[0].TextContent, "jane@example.com")
}

func TestMaskRequest_RedactsCreditCard(t *testing.T) {
	req := userReq("card is 4111 1111 1111 1111")
	res := interceptors.MaskRequest(req, true)
	assert.Contains(t, res.Value().Messages[0].TextContent, "[CC]")
}

func TestMaskRequest_RedactsSSN(t *testing.T) {
	req := userReq("ssn 123-45-6789")
	res := interceptors.MaskRequest(req, true)
	assert.Contains(t, res.Value().Messages[0].TextContent, "[SSN]")
}

func TestMaskRequest_SkipsInvalidSSNPrefixes(t *testing.T) {
	req := userReq("ssn 000-45-6789")
	res := interceptors.MaskRequest(req, true)
	assert.Contains(t, res.Value().Messages[0].TextContent, "000-45-6789")
}

func TestMaskRequest_RedactsPhone(t *testing.T) {
	req := userReq("call me at 415-555-0199")
	res := interceptors.MaskRequest(req, true)
	assert.Contains(t, res.Value().Messages[0].TextContent, "[PHONE]")
}

func TestMaskRequest_DoesNotMutateOriginal(t *testing.T) {
	req := userReq("jane@example.com")
	_ = interceptors.MaskRequest(req, true)
	assert.Equal(t, "jane@example.com", req.Messages[0].TextContent)
}

func TestMaskRequest_IdempotentOnAlreadyMasked(t *testing.T) {
	req := userReq("contact me at jane@example.com or 415-555-0199")
	once := interceptors.MaskRequest(req, true).Value()
	twice := interceptors.MaskRequest(once, true).Value()
	assert.Equal(t, once.Messages[0].TextContent, twice.Messages[0].TextContent)
}

func TestMaskRequest_MasksNestedBlocks(t *testing.T) {
	req := types.Request{
		ID: "r1",
		Messages: []types.Message{{
			Role: types.RoleUser,
			Blocks: []types.ContentBlock{
				{Text: "contact jane@example.com", Content: []types.ContentBlock{{Text: "backup: 415-555-0199"}}},
			},
		}},
	}
	res := interceptors.MaskRequest(req, true)
	block := res.Value().Messages[0].Blocks[0]
	assert.Contains(t, block.Text, "[EMAIL]")
	assert.Contains(t, block.Content[0].Text, "[PHONE]")
}
