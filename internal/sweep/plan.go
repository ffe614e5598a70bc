// Package sweep searches, per receiver sensitivity, for the smallest node spacing
// at which the simulator reports the Hidden Node Problem.
package sweep

import (
	"errors"
	"fmt"

	"hnp-sim/internal/topology"
	"hnp-sim/internal/trial"
)

// MaxIterations is the trial budget of one sensitivity value.
const MaxIterations = 50

// Plan describes a sweep. Sensitivities are visited from SensitivityStart down to
// SensitivityEnd inclusive, in unit steps.
type Plan struct {
	SensitivityStart int
	SensitivityEnd   int
	Baseline         string
	Ping             float64
	Nodes            float64
	Duration         float64
}

// DefaultPlan is the sweep of the reference Cascoda study.
func DefaultPlan() Plan {
	return Plan{
		SensitivityStart: -99,
		SensitivityEnd:   -105,
		Baseline:         "[0,0,0] [0,10,0] [0,20,0]",
		Ping:             83,
		Nodes:            3,
		Duration:         1,
	}
}

// Validate checks the plan before any trial runs.
func (p Plan) Validate() error {
	if p.SensitivityEnd > p.SensitivityStart {
		return fmt.Errorf("sensitivity end %d is above start %d", p.SensitivityEnd, p.SensitivityStart)
	}
	if p.Baseline == "" {
		return errors.New("baseline topology is empty")
	}
	if _, err := topology.Parse(p.Baseline); err != nil {
		return err
	}
	return nil
}

// Sensitivities lists the values in visiting order, e.g. -99 .. -105.
func (p Plan) Sensitivities() []int {
	var out []int
	for s := p.SensitivityStart; s >= p.SensitivityEnd; s-- {
		out = append(out, s)
	}
	return out
}

// Trial is the config of one inner-loop iteration. The iteration doubles as the
// scale factor and as the x token of the config name.
func (p Plan) Trial(sensitivity, iteration int) trial.Config {
	return trial.Config{
		Nodes:       p.Nodes,
		Duration:    p.Duration,
		Sensitivity: float64(sensitivity),
		Scale:       float64(iteration),
		Ping:        p.Ping,
	}
}
