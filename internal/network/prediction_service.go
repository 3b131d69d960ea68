package network

import (
	"sync"
	"time"

	"github.com/annel0/eldara-server/internal/gamedata"
	"github.com/annel0/eldara-server/internal/logging"
	"github.com/annel0/eldara-server/internal/protocol"
	"github.com/annel0/eldara-server/internal/vec"
	"github.com/annel0/eldara-server/internal/world/entity"
	"github.com/annel0/eldara-server/internal/world/zone"
)

const (
	// MinInputDelta и MaxInputDelta границы шага ввода клиента в секундах
	MinInputDelta = 0.001
	MaxInputDelta = 0.25
	// CorrectionThreshold расхождение с предсказанием клиента, после которого шлётся коррекция
	CorrectionThreshold = 1.0

	inputDeadzone    = 0.01
	runningThreshold = 0.1
	maxErrorHistory  = 100
)

// PredictionService проверяет ввод движения и сверяет результат с предсказанием клиента
type PredictionService struct {
	mu           sync.RWMutex
	zones        *zone.Directory
	metrics      *NetworkMetrics
	serverTime   func() int64
	playerStates map[uint64]*PlayerPredictionState // playerID -> state
	logger       *logging.Logger
}

// PlayerPredictionState статистика сверки одного игрока
type PlayerPredictionState struct {
	PlayerID           uint64
	LastProcessedInput uint32
	LastPosition       vec.Vec3
	LastVelocity       vec.Vec3
	PredictionErrors   []float32 // История ошибок для статистики

	// Метрики
	TotalInputs        uint64
	TotalCorrections   uint64
	TotalRejected      uint64
	AvgPredictionError float32
	MaxPredictionError float32
}

// MovementOutcome результат обработки одного ввода
type MovementOutcome struct {
	Update     *protocol.MovementUpdate
	Correction *protocol.PositionCorrection // nil если предсказание клиента совпало
	Rejected   bool                         // кандидат вне границ зоны
}

// NewPredictionService создаёт сервис движения
func NewPredictionService(zones *zone.Directory, metrics *NetworkMetrics, serverTime func() int64) *PredictionService {
	if metrics == nil {
		metrics = NewNetworkMetrics()
	}
	if serverTime == nil {
		start := time.Now()
		serverTime = func() int64 { return time.Since(start).Milliseconds() }
	}
	return &PredictionService{
		zones:        zones,
		metrics:      metrics,
		serverTime:   serverTime,
		playerStates: make(map[uint64]*PlayerPredictionState),
		logger:       logging.GetNetworkLogger(),
	}
}

// ProcessInput применяет ввод к игроку как авторитетный.
// Мёртвый игрок не двигается, результат nil.
func (ps *PredictionService) ProcessInput(p *entity.Player, in *protocol.MovementInput, now time.Time) *MovementOutcome {
	if !p.IsAlive() {
		return nil
	}

	dt := clampDelta(in.DeltaTime)

	axes := vec.Vec2{X: in.Input.Forward, Y: in.Input.Strafe}
	if axes.Length() > inputDeadzone {
		axes = axes.Normalized()
	}

	speed := p.MovementSpeed()
	if speed <= 0 {
		speed = gamedata.BaseRunSpeed
	}
	if in.Input.Sprint {
		speed *= gamedata.SprintMultiplier
	}

	current := p.Transform()
	velocity := axes.RotateYaw(in.Input.LookYaw).Mul(speed)
	candidate := current.Position.Add(velocity.Mul(dt))

	rejected := false
	if !ps.zones.IsPositionInZone(p.ZoneID(), candidate) {
		velocity = vec.Zero
		candidate = current.Position
		rejected = true
	}

	state := entity.MovementIdle
	if velocity.Length() > runningThreshold {
		state = entity.MovementRunning
	}

	p.SetTransform(entity.Transform{
		Position: candidate,
		Velocity: velocity,
		Yaw:      in.Input.LookYaw,
		Pitch:    in.Input.LookPitch,
		State:    state,
	})
	p.RecordInput(in.InputSequence, now)

	serverTime := ps.serverTime()
	out := &MovementOutcome{
		Update: &protocol.MovementUpdate{
			EntityID:        p.ID(),
			Position:        candidate,
			Velocity:        velocity,
			RotationYaw:     in.Input.LookYaw,
			RotationPitch:   in.Input.LookPitch,
			State:           state,
			ServerTimestamp: serverTime,
		},
		Rejected: rejected,
	}

	divergence := candidate.DistanceTo(in.PredictedPosition)
	if divergence > CorrectionThreshold {
		out.Correction = &protocol.PositionCorrection{
			LastProcessedInput:       in.InputSequence,
			AuthoritativePosition:    candidate,
			AuthoritativeVelocity:    velocity,
			AuthoritativeRotationYaw: in.Input.LookYaw,
			ServerTimestamp:          serverTime,
		}
		ps.metrics.RecordCorrection()
		ps.logger.Debug("📍 Коррекция игрока %d: расхождение %.2f на вводе %d", p.ID(), divergence, in.InputSequence)
	}

	ps.record(p.ID(), in.InputSequence, candidate, velocity, divergence, out.Correction != nil, rejected)
	return out
}

func clampDelta(dt float32) float32 {
	switch {
	case dt < MinInputDelta:
		return MinInputDelta
	case dt > MaxInputDelta:
		return MaxInputDelta
	default:
		return dt
	}
}

func (ps *PredictionService) record(playerID uint64, seq uint32, pos, velocity vec.Vec3, divergence float32, corrected, rejected bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	state, exists := ps.playerStates[playerID]
	if !exists {
		state = &PlayerPredictionState{
			PlayerID:         playerID,
			PredictionErrors: make([]float32, 0, maxErrorHistory),
		}
		ps.playerStates[playerID] = state
	}

	state.TotalInputs++
	state.LastProcessedInput = seq
	state.LastPosition = pos
	state.LastVelocity = velocity
	if corrected {
		state.TotalCorrections++
	}
	if rejected {
		state.TotalRejected++
	}

	if len(state.PredictionErrors) >= maxErrorHistory {
		state.PredictionErrors = state.PredictionErrors[1:]
	}
	state.PredictionErrors = append(state.PredictionErrors, divergence)

	var sum float32
	for _, e := range state.PredictionErrors {
		sum += e
	}
	state.AvgPredictionError = sum / float32(len(state.PredictionErrors))
	if divergence > state.MaxPredictionError {
		state.MaxPredictionError = divergence
	}
}

// RemovePlayer забывает статистику игрока
func (ps *PredictionService) RemovePlayer(playerID uint64) {
	ps.mu.Lock()
	delete(ps.playerStates, playerID)
	ps.mu.Unlock()
}

// GetPlayerState копия статистики игрока
func (ps *PredictionService) GetPlayerState(playerID uint64) (PlayerPredictionState, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	state, ok := ps.playerStates[playerID]
	if !ok {
		return PlayerPredictionState{}, false
	}
	cp := *state
	cp.PredictionErrors = append([]float32(nil), state.PredictionErrors...)
	return cp, true
}

// GetPredictionStats сводная статистика сверки
func (ps *PredictionService) GetPredictionStats() map[string]interface{} {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	var totalInputs, totalCorrections uint64
	var avgError, maxError float32
	for _, state := range ps.playerStates {
		totalInputs += state.TotalInputs
		totalCorrections += state.TotalCorrections
		avgError += state.AvgPredictionError
		if state.MaxPredictionError > maxError {
			maxError = state.MaxPredictionError
		}
	}
	if n := len(ps.playerStates); n > 0 {
		avgError /= float32(n)
	}

	correctionRate := float64(0)
	if totalInputs > 0 {
		correctionRate = float64(totalCorrections) / float64(totalInputs)
	}

	return map[string]interface{}{
		"active_players":       len(ps.playerStates),
		"total_inputs":         totalInputs,
		"total_corrections":    totalCorrections,
		"correction_rate":      correctionRate,
		"avg_prediction_error": avgError,
		"max_prediction_error": maxError,
	}
}
