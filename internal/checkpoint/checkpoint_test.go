package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
checkpoints:
  - id: CP-01
    description: Main entry door to equipment room
    camera: cam_01
    expected:
      door_state: CLOSED
  - id: CP-02
    description: Cold aisle walkway
    camera: cam_02
    expected:
      pathway_clearance: ABSENT
  - id: CP-03
    description: Core switch panel
    camera: cam_03
    expected:
      panel_power: "ON"
`

func TestParseAssignsSequenceFromDeclarationOrder(t *testing.T) {
	set, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())

	defs := set.All()
	for i, d := range defs {
		assert.Equal(t, i+1, d.Sequence, "sequence for %s", d.ID)
	}
	assert.Equal(t, "CP-01", defs[0].ID)
	assert.Equal(t, "CP-03", defs[2].ID)
}

func TestParseRejectsDuplicateIDs(t *testing.T) {
	_, err := Parse([]byte(`
checkpoints:
  - id: CP-01
    expected: {door_state: CLOSED}
  - id: CP-01
    expected: {door_state: OPEN}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate checkpoint id")
}

func TestParseRejectsEmptyExpected(t *testing.T) {
	_, err := Parse([]byte(`
checkpoints:
  - id: CP-01
`))
	require.Error(t, err)
}

func TestGet(t *testing.T) {
	set, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	d, ok := set.Get("CP-02")
	require.True(t, ok)
	assert.Equal(t, 2, d.Sequence)
	assert.Equal(t, "Cold aisle walkway", d.Name())

	_, ok = set.Get("CP-99")
	assert.False(t, ok)
}

func TestNameFallsBackToID(t *testing.T) {
	d := Definition{ID: "CP-07"}
	assert.Equal(t, "CP-07", d.Name())
}
