package ai

import (
	"time"

	"github.com/annel0/eldara-server/internal/world/entity"
)

// State представляет состояние конечного автомата NPC
type State interface {
	ID() entity.AIState
	Enter(ctx *Context)
	Update(ctx *Context) State
	Exit(ctx *Context)
}

// Context данные одного шага автомата
type Context struct {
	NPC *entity.NPC
	Dt  float32
	Now time.Time

	c *Controller
}

// machine таблица состояний. Сами состояния без полей: всё изменяемое живёт в NPC,
// поэтому один экземпляр обслуживает всех NPC.
type machine struct {
	states map[entity.AIState]State
}

func newMachine(states ...State) *machine {
	m := &machine{states: make(map[entity.AIState]State, len(states))}
	for _, s := range states {
		m.states[s.ID()] = s
	}
	return m
}

func (m *machine) current(npc *entity.NPC) State {
	if s, ok := m.states[npc.AIState()]; ok {
		return s
	}
	return m.states[entity.AIIdle]
}

// step выполняет одно обновление и переход, если состояние сменилось
func (m *machine) step(ctx *Context) (from, to entity.AIState) {
	cur := m.current(ctx.NPC)
	next := cur.Update(ctx)
	if next == nil || next.ID() == cur.ID() {
		return cur.ID(), cur.ID()
	}
	m.transition(ctx, cur, next)
	return cur.ID(), next.ID()
}

// force переводит NPC в состояние в обход Update
func (m *machine) force(ctx *Context, id entity.AIState) {
	cur := m.current(ctx.NPC)
	if cur.ID() == id {
		return
	}
	m.transition(ctx, cur, m.states[id])
}

func (m *machine) transition(ctx *Context, from, to State) {
	from.Exit(ctx)
	ctx.NPC.SetAIState(to.ID())
	to.Enter(ctx)
}
