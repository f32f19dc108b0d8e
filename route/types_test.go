package route

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepJSON_FloorChangeToGround(t *testing.T) {
	data, err := json.Marshal(FloorChange(2, 0, ViaStairs, "s2"))
	require.NoError(t, err)

	assert.JSONEq(t, `{"kind":"floor_change","floor":2,"from":2,"to":0,"via":"stairs","nodeId":"s2"}`, string(data))

	var back Step
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, FloorChange(2, 0, ViaStairs, "s2"), back)
}

func TestStepJSON_FloorChangeFromGround(t *testing.T) {
	data, err := json.Marshal(FloorChange(0, 1, ViaElevator, ""))
	require.NoError(t, err)

	assert.JSONEq(t, `{"kind":"floor_change","floor":0,"from":0,"to":1,"via":"elevator"}`, string(data))
}

func TestStepJSON_Move(t *testing.T) {
	data, err := json.Marshal(Move(orb.Point{0, 0}, 0))
	require.NoError(t, err)

	assert.JSONEq(t, `{"kind":"move","point":[0,0],"floor":0}`, string(data))
}

func TestStepJSON_Turn(t *testing.T) {
	data, err := json.Marshal(Turn("left", 90))
	require.NoError(t, err)

	assert.JSONEq(t, `{"kind":"turn","direction":"left","angle":90}`, string(data))
}
