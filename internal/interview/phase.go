// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Parley Contributors

package interview

import "github.com/parley-dev/parley/internal/store"

// phaseOrder is the fixed forward-only interview lifecycle. Completed
// is absent: it is reachable only through orchestrator finalization,
// never through NextPhase.
var phaseOrder = []store.Phase{
	store.PhaseWarmup,
	store.PhaseBehavioral,
	store.PhaseTechnical,
	store.PhaseSystemDesign,
	store.PhaseProduct,
	store.PhaseWrapUp,
}

// NextPhase returns the phase following p in the fixed ordering.
// wrap_up is absorbing, and an unknown phase also maps to wrap_up so a
// corrupted phase value can only move the session toward its end.
func NextPhase(p store.Phase) store.Phase {
	for i, candidate := range phaseOrder {
		if candidate != p {
			continue
		}
		if i == len(phaseOrder)-1 {
			return store.PhaseWrapUp
		}
		return phaseOrder[i+1]
	}
	return store.PhaseWrapUp
}

// PhaseIndex returns p's position in the fixed ordering, or -1 for
// phases outside it (setup, completed, garbage).
func PhaseIndex(p store.Phase) int {
	for i, candidate := range phaseOrder {
		if candidate == p {
			return i
		}
	}
	return -1
}
