package sim

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/openwater-labs/aquanet/internal/domain"
)

// SyntheticSolver is a deterministic hydraulics stand-in: diurnal demand
// patterns per node, orifice-equation leak outflow, and a head-loss proxy
// for pressure. It is a pure function of its request, which makes
// generated collections reproducible and cache fingerprints meaningful.
// Production deployments inject a real solver instead.
type SyntheticSolver struct{}

// leakFlow converts an orifice diameter in meters to an outflow.
func leakFlow(diameter float64) float64 {
	r := diameter / 2
	return 0.75 * math.Sqrt(2.0/1000.0) * 990.27 * math.Pi * r * r
}

// Simulate produces demand, flow and pressure tables for every part of the
// network.
func (SyntheticSolver) Simulate(ctx context.Context, req *domain.SolveRequest) (*domain.SolveResult, error) {
	n := req.Network
	for part := range req.Schedules {
		if !n.HasPart(part) {
			return nil, domain.SimulationErrorf("leak schedule references unknown part %q", part)
		}
	}

	patternStep := n.PatternStep
	if patternStep <= 0 {
		patternStep = req.TimeStep
	}

	nodeIDs := make([]string, len(n.Nodes))
	for i := range n.Nodes {
		nodeIDs[i] = n.Nodes[i].ID
	}
	linkIDs := make([]string, len(n.Links))
	for i := range n.Links {
		linkIDs[i] = n.Links[i].ID
	}

	demand := domain.NewTable(nodeIDs, req.Iterations)
	flow := domain.NewTable(linkIDs, req.Iterations)
	pressure := domain.NewTable(nodeIDs, req.Iterations)

	nodeCol := map[string]int{}
	for i, id := range nodeIDs {
		nodeCol[id] = i
	}

	for row := 0; row < req.Iterations; row++ {
		if row%256 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		t := float64(row * req.TimeStep)
		demand.Time[row] = t
		flow.Time[row] = t
		pressure.Time[row] = t

		total := 0.0
		for i := range n.Nodes {
			node := &n.Nodes[i]
			d := 0.0
			if node.Type != "reservoir" && node.Type != "tank" {
				u := hashUnit(node.ID, 0)
				base := 5 + 10*u
				phase := 2 * math.Pi * hashUnit(node.ID, 1)
				d = base * (1 + 0.3*math.Sin(2*math.Pi*t/86400+phase))
			}
			if curve, ok := req.Schedules[node.ID]; ok {
				d += leakFlow(scheduleAt(curve, t, patternStep))
			}
			demand.Values[row][i] = d
			total += d
		}

		for i := range n.Links {
			link := &n.Links[i]
			q := 0.5 * (demand.Values[row][nodeCol[link.N1]] + demand.Values[row][nodeCol[link.N2]])
			if curve, ok := req.Schedules[link.ID]; ok {
				// Water lost through a pipe orifice still passes the
				// upstream meter.
				q += leakFlow(scheduleAt(curve, t, patternStep))
			}
			flow.Values[row][i] = q
		}

		for i := range n.Nodes {
			node := &n.Nodes[i]
			base := 45 + 15*hashUnit(node.ID, 2)
			p := base - 0.02*total
			if curve, ok := req.Schedules[node.ID]; ok {
				p -= 0.5 * leakFlow(scheduleAt(curve, t, patternStep))
			}
			pressure.Values[row][i] = p
		}
	}

	return &domain.SolveResult{Demand: demand, Flow: flow, Pressure: pressure}, nil
}

// scheduleAt samples a pattern-step curve at an absolute time in seconds.
func scheduleAt(curve []float64, t float64, patternStep int) float64 {
	if len(curve) == 0 {
		return 0
	}
	idx := int(t) / patternStep
	if idx >= len(curve) {
		idx = len(curve) - 1
	}
	return curve[idx]
}

// hashUnit maps a part identifier to a stable value in [0, 1).
func hashUnit(id string, salt byte) float64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	h.Write([]byte{salt})
	return float64(h.Sum64()%100000) / 100000
}
