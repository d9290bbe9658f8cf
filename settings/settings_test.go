package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettingsDefaults(t *testing.T) {
	s := NewSettings()
	require.NotNil(t, s.ChainCfgParams)

	assert.Equal(t, "crownd", s.ClientName)
	assert.Equal(t, uint32(288), s.Chain.MaximumReorgBlockCount)
	assert.Equal(t, 50000, s.P2P.InvQueueSize)
	assert.Equal(t, 16, s.P2P.MaxInFlightBlocks)
	assert.NotNil(t, s.Chain.StoreURL)
	assert.Equal(t, "sqlitememory", s.Chain.StoreURL.Scheme)
}

func TestNewTestSettings(t *testing.T) {
	s := NewTestSettings()
	assert.Equal(t, "regtest", s.ChainCfgParams.Name)
	assert.Equal(t, uint32(32), s.Chain.MaximumReorgBlockCount)
}
