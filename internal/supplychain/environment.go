// Package supplychain implements the beer game environment: a linear chain of
// tiers (retailer, wholesaler, distributor, factory) that ship goods
// downstream with stochastic lead times and carry unmet demand as backlog.
package supplychain

import (
	"errors"
	"fmt"
)

// Initial pipeline every tier starts an episode with
const (
	seedOrderQuantity = 4
	seedOrderCount    = 2
)

var (
	// ErrInvalidConfig is returned when the environment parameters are inconsistent
	ErrInvalidConfig = errors.New("invalid supply chain configuration")
	// ErrHorizonExceeded is returned when stepping past the demand/lead-time sequences
	ErrHorizonExceeded = errors.New("tick exceeds demand and lead time horizon")
	// ErrActionLength is returned when the action vector does not match the tier count
	ErrActionLength = errors.New("action vector length does not match tier count")
)

// Params are the construction inputs of an Environment
type Params struct {
	InitialInventory []int `json:"initial_inventory"`
	HoldingCosts     []int `json:"holding_costs"`
	PenaltyCosts     []int `json:"penalty_costs"`
	CustomerDemand   []int `json:"customer_demand"`
	LeadTimes        []int `json:"lead_times"`
}

// Validate checks the vector lengths of the parameters
func (p Params) Validate() error {
	tiers := len(p.InitialInventory)
	if tiers == 0 {
		return fmt.Errorf("%w: at least one tier is required", ErrInvalidConfig)
	}
	if len(p.HoldingCosts) != tiers {
		return fmt.Errorf("%w: %d holding costs for %d tiers", ErrInvalidConfig, len(p.HoldingCosts), tiers)
	}
	if len(p.PenaltyCosts) != tiers {
		return fmt.Errorf("%w: %d penalty costs for %d tiers", ErrInvalidConfig, len(p.PenaltyCosts), tiers)
	}
	if len(p.CustomerDemand) != len(p.LeadTimes) {
		return fmt.Errorf("%w: demand has %d ticks but lead times have %d",
			ErrInvalidConfig, len(p.CustomerDemand), len(p.LeadTimes))
	}
	return nil
}

// PendingOrder is an in-transit delivery owned by the receiving tier
type PendingOrder struct {
	ArrivalTick int `json:"arrival_tick"`
	Quantity    int `json:"quantity"`
}

// Environment is the beer game state machine. It is not safe for concurrent use;
// parallel experiments should each own an Environment.
type Environment struct {
	params Params
	tiers  int

	tick              int
	inventory         []int
	backlog           []int
	requiredInventory []int
	pendingOrders     [][]PendingOrder
	fulfilled         []int
}

// NewEnvironment validates the parameters and returns a freshly reset environment
func NewEnvironment(p Params) (*Environment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	tiers := len(p.InitialInventory)
	env := &Environment{
		params: Params{
			InitialInventory: append([]int(nil), p.InitialInventory...),
			HoldingCosts:     append([]int(nil), p.HoldingCosts...),
			PenaltyCosts:     append([]int(nil), p.PenaltyCosts...),
			CustomerDemand:   append([]int(nil), p.CustomerDemand...),
			LeadTimes:        append([]int(nil), p.LeadTimes...),
		},
		tiers: tiers,
	}
	env.Reset()
	return env, nil
}

// Reset restores the initial inventory, clears backlog and seeds each tier
// with two deliveries of 4 units arriving at ticks 1 and 2.
func (e *Environment) Reset() State {
	e.tick = 0
	e.inventory = append([]int(nil), e.params.InitialInventory...)
	e.backlog = make([]int, e.tiers)
	e.fulfilled = make([]int, e.tiers)

	// one extra slot for the factory's production order
	e.requiredInventory = make([]int, e.tiers+1)

	e.pendingOrders = make([][]PendingOrder, e.tiers)
	for i := range e.pendingOrders {
		orders := make([]PendingOrder, 0, seedOrderCount)
		for arrival := 1; arrival <= seedOrderCount; arrival++ {
			orders = append(orders, PendingOrder{ArrivalTick: arrival, Quantity: seedOrderQuantity})
		}
		e.pendingOrders[i] = orders
	}

	return e.State()
}

// State returns the coded state of the current inventory and backlog
func (e *Environment) State() State {
	return CodeState(e.inventory, e.backlog)
}

// Step advances the simulation by one tick and returns the next coded state and its reward
func (e *Environment) Step(action Action) (State, int, error) {
	if len(action) != e.tiers {
		return nil, 0, fmt.Errorf("%w: got %d, want %d", ErrActionLength, len(action), e.tiers)
	}
	if e.tick >= len(e.params.CustomerDemand) {
		return nil, 0, fmt.Errorf("%w: tick %d, horizon %d", ErrHorizonExceeded, e.tick, len(e.params.CustomerDemand))
	}

	e.deliver()

	leadTime := e.params.LeadTimes[e.tick]
	for i := 0; i < e.tiers; i++ {
		if i == 0 {
			e.requiredInventory[i] = e.params.CustomerDemand[e.tick]
		} else {
			// order-up-to X+Y: downstream requirement plus the downstream tier's buffer
			e.requiredInventory[i] = e.requiredInventory[i-1] + action[i-1]
		}

		backlogSettled := e.settleBacklog(i)
		orderFulfilled := e.fulfil(i, e.requiredInventory[i])
		e.fulfilled[i] = backlogSettled + orderFulfilled

		if i != 0 {
			e.pendingOrders[i-1] = append(e.pendingOrders[i-1], PendingOrder{
				ArrivalTick: e.tick + leadTime,
				Quantity:    e.fulfilled[i],
			})
		}

		// the factory has unlimited raw material and schedules its own production
		if i == e.tiers-1 {
			e.requiredInventory[i+1] = e.requiredInventory[i] + action[i]
			e.pendingOrders[i] = append(e.pendingOrders[i], PendingOrder{
				ArrivalTick: e.tick + leadTime,
				Quantity:    e.requiredInventory[i+1],
			})
		}
	}

	// second pass picks up orders placed this tick with zero lead time
	e.deliver()

	e.tick++
	return e.State(), e.Reward(), nil
}

// settleBacklog serves as much of tier i's backlog as inventory allows
func (e *Environment) settleBacklog(i int) int {
	if e.backlog[i] <= 0 {
		return 0
	}
	settled := min(e.backlog[i], e.inventory[i])
	e.backlog[i] -= settled
	e.inventory[i] -= settled
	return settled
}

// fulfil serves the current requirement of tier i and backlogs the shortfall
func (e *Environment) fulfil(i, required int) int {
	fulfilled := required
	if e.inventory[i] < required {
		fulfilled = e.inventory[i]
		e.backlog[i] += required - fulfilled
	}
	e.inventory[i] -= fulfilled
	return fulfilled
}

// deliver releases every pending order whose arrival tick has been reached
func (e *Environment) deliver() {
	for i, orders := range e.pendingOrders {
		remaining := orders[:0]
		for _, order := range orders {
			if order.ArrivalTick <= e.tick {
				e.inventory[i] += order.Quantity
				continue
			}
			remaining = append(remaining, order)
		}
		e.pendingOrders[i] = remaining
	}
}

// Reward is the negated holding plus backlog cost of the current state
func (e *Environment) Reward() int {
	holdingCost := 0
	penaltyCost := 0
	for i := 0; i < e.tiers; i++ {
		holdingCost += e.params.HoldingCosts[i] * max(0, e.inventory[i])
		penaltyCost += e.params.PenaltyCosts[i] * max(0, e.backlog[i])
	}
	return -(holdingCost + penaltyCost)
}

// Tick returns the current time step
func (e *Environment) Tick() int {
	return e.tick
}

// Tiers returns the number of tiers in the chain
func (e *Environment) Tiers() int {
	return e.tiers
}

// Horizon returns the number of ticks covered by the demand sequence
func (e *Environment) Horizon() int {
	return len(e.params.CustomerDemand)
}

// Demand returns the customer demand at tick t, or 0 outside the horizon
func (e *Environment) Demand(t int) int {
	if t < 0 || t >= len(e.params.CustomerDemand) {
		return 0
	}
	return e.params.CustomerDemand[t]
}

// Params returns a copy of the construction parameters
func (e *Environment) Params() Params {
	return Params{
		InitialInventory: append([]int(nil), e.params.InitialInventory...),
		HoldingCosts:     append([]int(nil), e.params.HoldingCosts...),
		PenaltyCosts:     append([]int(nil), e.params.PenaltyCosts...),
		CustomerDemand:   append([]int(nil), e.params.CustomerDemand...),
		LeadTimes:        append([]int(nil), e.params.LeadTimes...),
	}
}

// Inventory returns a snapshot of the inventory levels
func (e *Environment) Inventory() []int {
	return append([]int(nil), e.inventory...)
}

// Backlog returns a snapshot of the order backlog
func (e *Environment) Backlog() []int {
	return append([]int(nil), e.backlog...)
}

// RequiredInventory returns a snapshot of the order signal, including the factory's production slot
func (e *Environment) RequiredInventory() []int {
	return append([]int(nil), e.requiredInventory...)
}

// Fulfilled returns how much each tier shipped (backlog plus current demand) in the last step
func (e *Environment) Fulfilled() []int {
	return append([]int(nil), e.fulfilled...)
}

// PendingOrders returns a deep copy of every tier's in-transit deliveries
func (e *Environment) PendingOrders() [][]PendingOrder {
	out := make([][]PendingOrder, len(e.pendingOrders))
	for i, orders := range e.pendingOrders {
		out[i] = append([]PendingOrder(nil), orders...)
	}
	return out
}
