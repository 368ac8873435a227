// Package planner computes per-project priority weights for a device from
// its recorded dispatch history. It is a deliberately simple heuristic: the
// rest of the pipeline only depends on the Result shape, so the allocation
// rule can be swapped out without touching handlers or storage.
package planner

import (
	"fmt"
	"strings"

	"github.com/vesaa/gridpilot/internal/config"
	"github.com/vesaa/gridpilot/internal/models"
	"github.com/vesaa/gridpilot/internal/protocol"
	"github.com/vesaa/gridpilot/internal/store"
)

const (
	basePriority    = 100
	newProjectBoost = 1000

	flopsPerTeraflop = 1e12
	// Aggregates at or below this many TFLOPs clamp the boost ratio to 1.
	boostClampTflops = 10000

	// dominantProject already commands the largest share of volunteer
	// capacity; its aggregate is halved so the heuristic steers less
	// toward it.
	dominantProject = "worldcommunitygrid"
	// nixosExcludedProject ships binaries that do not run on NixOS hosts.
	nixosExcludedProject = "loda"
)

// Result maps project id to an integer priority weight. Ephemeral,
// recomputed from scratch on every account-manager contact. A project
// absent from the map was excluded for this device.
type Result map[string]int

// ComputePriorities derives a priority per registered project for the
// device described by host.
//
// Every project starts at the base priority. Projects the device cannot
// run are removed outright. Each remaining project is boosted inversely to
// the estimated compute already dispatched to this device (cancelled units
// do not count); projects that never sent the device work get a flat boost
// instead.
func ComputePriorities(reg *config.Registry, host protocol.HostInfo, st *store.Store) (Result, error) {
	result := make(Result, len(reg.Projects))
	for id := range reg.Projects {
		result[id] = basePriority
	}

	if strings.Contains(strings.ToLower(host.OSName), "nixos") {
		delete(result, nixosExcludedProject)
	}

	units, err := st.ListSince(host.HostCPID, 0)
	if err != nil {
		return nil, fmt.Errorf("reading dispatch history: %w", err)
	}

	// TODO: discard workunits with too high a failure rate from the
	// aggregate, not just cancelled ones.
	sent := make(map[string]float64)
	for _, wu := range units {
		if models.StatusFromCode(wu.Status) == models.StatusCancelled {
			continue
		}
		sent[wu.Project] += wu.RscFpopsEst
	}
	if agg, ok := sent[dominantProject]; ok {
		sent[dominantProject] = agg / 2
	}

	for id := range result {
		agg, ok := sent[id]
		if !ok {
			result[id] += newProjectBoost
			continue
		}
		tflop := agg / flopsPerTeraflop
		result[id] += int(boostClampTflops / max(tflop, boostClampTflops) * 1000)
	}

	return result, nil
}
