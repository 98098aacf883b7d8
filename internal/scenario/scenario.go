// Package scenario holds the demand and lead-time fixtures of the beer game
// experiments together with the global chain parameters they were run with.
package scenario

import (
	"fmt"
	"sort"

	"github.com/TristanKruse/Beer-Game-RL/internal/supplychain"
)

// Global parameters shared by every scenario
var (
	InitialInventory = []int{12, 12, 12, 12}
	HoldingCosts     = []int{1, 1, 1, 1}
	PenaltyCosts     = []int{2, 2, 2, 2}
	Actions          = []int{0, 1, 2, 3}
)

// TimeHorizon is the length of every built-in demand sequence
const TimeHorizon = 35

// Scenario is a named demand and lead-time sequence of equal length
type Scenario struct {
	Name           string `mapstructure:"name" json:"name"`
	CustomerDemand []int  `mapstructure:"customer_demand" json:"customer_demand"`
	LeadTimes      []int  `mapstructure:"lead_times" json:"lead_times"`
}

var (
	leadTimesA = []int{2, 0, 2, 4, 4, 4, 0, 2, 4, 1, 1, 0, 0, 1, 1, 0, 1, 1, 2, 1, 1, 1, 4, 2, 2, 1, 4, 3, 4, 1, 4, 0,
		3, 3, 4}
	leadTimesB = []int{4, 2, 2, 0, 2, 2, 1, 1, 3, 0, 0, 3, 3, 3, 4, 1, 1, 1, 3, 0, 4, 2, 3, 4, 1, 3, 3, 3, 0, 3, 4, 3,
		3, 0, 3}
	demandA = []int{15, 10, 8, 14, 9, 3, 13, 2, 13, 11, 3, 4, 6, 11, 15, 12, 15, 4, 12, 3, 13, 10, 15, 15, 3,
		11, 1, 13, 10, 10, 0, 0, 8, 0, 14}
)

var builtin = map[string]Scenario{
	"main": {
		Name:           "main",
		CustomerDemand: demandA,
		LeadTimes:      leadTimesA,
	},
	"test1": {
		Name: "test1",
		CustomerDemand: []int{5, 14, 14, 13, 2, 9, 5, 9, 14, 14, 12, 7, 5, 1, 13, 3, 12, 4, 0, 15, 11, 10, 6, 0, 6, 6, 5,
			11, 8, 4, 4, 12, 13, 8, 12},
		LeadTimes: leadTimesA,
	},
	"test2": {
		Name:           "test2",
		CustomerDemand: demandA,
		LeadTimes:      leadTimesB,
	},
	"test3": {
		Name: "test3",
		CustomerDemand: []int{13, 13, 12, 10, 14, 13, 13, 10, 2, 12, 11, 9, 11, 3, 7, 6, 12, 12, 3, 10, 3, 9, 4, 15, 12,
			7, 15, 5, 1, 15, 11, 9, 14, 0, 4},
		LeadTimes: leadTimesB,
	},
}

// Get returns a copy of the built-in scenario with the given name
func Get(name string) (Scenario, error) {
	s, ok := builtin[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q (available: %v)", name, Names())
	}
	return s.clone(), nil
}

// Names lists the built-in scenarios in sorted order
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that demand and lead times cover the same horizon
func (s Scenario) Validate() error {
	if len(s.CustomerDemand) == 0 {
		return fmt.Errorf("scenario %q has no demand", s.Name)
	}
	if len(s.CustomerDemand) != len(s.LeadTimes) {
		return fmt.Errorf("scenario %q: %d demand ticks but %d lead times", s.Name, len(s.CustomerDemand), len(s.LeadTimes))
	}
	return nil
}

// Horizon returns the number of ticks the scenario covers
func (s Scenario) Horizon() int {
	return len(s.CustomerDemand)
}

// Params builds the environment parameters of the scenario for the given chain
func (s Scenario) Params(initialInventory, holdingCosts, penaltyCosts []int) supplychain.Params {
	return supplychain.Params{
		InitialInventory: append([]int(nil), initialInventory...),
		HoldingCosts:     append([]int(nil), holdingCosts...),
		PenaltyCosts:     append([]int(nil), penaltyCosts...),
		CustomerDemand:   append([]int(nil), s.CustomerDemand...),
		LeadTimes:        append([]int(nil), s.LeadTimes...),
	}
}

// DefaultParams builds the environment parameters with the global chain settings
func (s Scenario) DefaultParams() supplychain.Params {
	return s.Params(InitialInventory, HoldingCosts, PenaltyCosts)
}

func (s Scenario) clone() Scenario {
	return Scenario{
		Name:           s.Name,
		CustomerDemand: append([]int(nil), s.CustomerDemand...),
		LeadTimes:      append([]int(nil), s.LeadTimes...),
	}
}
