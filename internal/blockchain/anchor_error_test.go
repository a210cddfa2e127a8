package blockchain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindAnchorError(t *testing.T) {
	logs := []string{
		"Program 6fDcuCmcBiJepAQkboGpVC4icLbeSMX88UMTwNDLGM5z invoke [1]",
		"Program log: Instruction: RemoveLiquidity",
		"Program log: AnchorError occurred. Error Code: InsufficientFunds. Error Number: 6001. Error Message: Pool has no liquidity.",
		"Program 6fDcuCmcBiJepAQkboGpVC4icLbeSMX88UMTwNDLGM5z failed: custom program error: 0x1771",
	}

	ae, ok := FindAnchorError(logs)
	require.True(t, ok)
	assert.Equal(t, "InsufficientFunds", ae.Name)
	assert.Equal(t, 6001, ae.Code)
	assert.Equal(t, "Pool has no liquidity", ae.Msg)
	assert.Equal(t, "anchor error InsufficientFunds (6001): Pool has no liquidity", ae.Error())
}

func TestFindAnchorError_NotPresent(t *testing.T) {
	_, ok := FindAnchorError([]string{"Program log: Instruction: Swap", "Program consumed 1200 of 200000 compute units"})
	assert.False(t, ok)

	_, ok = FindAnchorError(nil)
	assert.False(t, ok)
}
