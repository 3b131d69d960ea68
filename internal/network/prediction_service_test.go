package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/protocol"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/entity"
	"github.com/annel0/eldara-server/internal/world/zone"
)

func newMover(t *testing.T) *entity.Player {
	t.Helper()
	data := gamedata.NewCharacter(1, gamedata.CharacterDefinition{
		Name: "Sylwen", Race: gamedata.RaceSylvaen, Class: gamedata.ClassMemoryWarden, Faction: gamedata.FactionVerdantCircles,
	}, time.Unix(0, 0))
	data.Stats.MovementSpeed = gamedata.BaseRunSpeed
	p := entity.NewPlayer(1, 1, data)
	p.Relocate(gamedata.ZoneThornveilEnclave, vec.New(0, 0, 0))
	return p
}

func TestMovementDisplacementAndSingleCorrection(t *testing.T) {
	ps := NewPredictionService(zone.NewDirectory(), nil, func() int64 { return 42 })
	p := newMover(t)
	now := time.Unix(100, 0)

	// клиент предсказал то же, что посчитает сервер
	out := ps.ProcessInput(p, &protocol.MovementInput{
		InputSequence:     1,
		DeltaTime:         0.1,
		Input:             protocol.InputState{Forward: 1},
		PredictedPosition: vec.New(0.7, 0, 0),
	}, now)
	require.NotNil(t, out)
	assert.Nil(t, out.Correction)
	assert.InDelta(t, 0.7, p.Position().X, 1e-4)
	assert.InDelta(t, 0, p.Position().Y, 1e-4)
	assert.Equal(t, entity.MovementRunning, out.Update.State)
	assert.Equal(t, int64(42), out.Update.ServerTimestamp)

	// клиент убежал на 5 единиц вперёд
	out = ps.ProcessInput(p, &protocol.MovementInput{
		InputSequence:     2,
		DeltaTime:         0.1,
		Input:             protocol.InputState{Forward: 1},
		PredictedPosition: vec.New(6.4, 0, 0),
	}, now.Add(100*time.Millisecond))
	require.NotNil(t, out.Correction)
	assert.Equal(t, uint32(2), out.Correction.LastProcessedInput)
	assert.InDelta(t, 1.4, out.Correction.AuthoritativePosition.X, 1e-4)

	state, ok := ps.GetPlayerState(p.ID())
	require.True(t, ok)
	assert.EqualValues(t, 2, state.TotalInputs)
	assert.EqualValues(t, 1, state.TotalCorrections)
	seq, _ := p.LastInput()
	assert.Equal(t, uint32(2), seq)
}

func TestMovementDeltaClampAndSprint(t *testing.T) {
	ps := NewPredictionService(zone.NewDirectory(), nil, nil)
	p := newMover(t)

	// зависший клиент: шаг обрезается до 0.25
	ps.ProcessInput(p, &protocol.MovementInput{
		InputSequence:     1,
		DeltaTime:         10,
		Input:             protocol.InputState{Forward: 1, Strafe: 1},
		PredictedPosition: p.Position(),
	}, time.Now())
	assert.InDelta(t, 7*0.25, p.Position().Length(), 1e-3, "диагональ нормализуется")

	p.Relocate(gamedata.ZoneThornveilEnclave, vec.Zero)
	ps.ProcessInput(p, &protocol.MovementInput{
		InputSequence: 2,
		DeltaTime:     0.1,
		Input:         protocol.InputState{Forward: 1, Sprint: true, LookYaw: 90},
	}, time.Now())
	assert.InDelta(t, 0, p.Position().X, 1e-4)
	assert.InDelta(t, 7*1.4*0.1, p.Position().Y, 1e-4)
}

func TestMovementIdleBelowDeadzone(t *testing.T) {
	ps := NewPredictionService(zone.NewDirectory(), nil, nil)
	p := newMover(t)

	out := ps.ProcessInput(p, &protocol.MovementInput{
		InputSequence: 1,
		DeltaTime:     0.1,
		Input:         protocol.InputState{Forward: 0.001},
	}, time.Now())
	require.NotNil(t, out)
	assert.Equal(t, entity.MovementIdle, out.Update.State)
}

func TestMovementOutsideZoneRejected(t *testing.T) {
	zones := zone.NewDirectory()
	z, ok := zones.Get(gamedata.ZoneThornveilEnclave)
	require.True(t, ok)

	ps := NewPredictionService(zones, nil, nil)
	p := newMover(t)
	edge := vec.New(z.Max.X, 0, 0)
	p.Relocate(gamedata.ZoneThornveilEnclave, edge)

	out := ps.ProcessInput(p, &protocol.MovementInput{
		InputSequence:     1,
		DeltaTime:         0.1,
		Input:             protocol.InputState{Forward: 1},
		PredictedPosition: edge,
	}, time.Now())
	require.NotNil(t, out)
	assert.True(t, out.Rejected)
	assert.Equal(t, edge, p.Position())
	assert.Equal(t, vec.Zero, out.Update.Velocity)
	assert.Equal(t, entity.MovementIdle, out.Update.State)
	assert.Nil(t, out.Correction)
}

func TestDeadPlayerIgnoresInput(t *testing.T) {
	ps := NewPredictionService(zone.NewDirectory(), nil, nil)
	p := newMover(t)
	p.ApplyDamage(1_000_000)

	assert.Nil(t, ps.ProcessInput(p, &protocol.MovementInput{Input: protocol.InputState{Forward: 1}}, time.Now()))
	_, ok := ps.GetPlayerState(p.ID())
	assert.False(t, ok)
}
