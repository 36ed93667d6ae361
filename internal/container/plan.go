package container

// Plan phases.
const (
	PhaseInitialize = "initialize"
	PhaseSetup      = "setup"
)

// Action is one deferred call of a plan.
type Action struct {
	Phase       string `yaml:"phase"`
	Service     string `yaml:"service,omitempty"`
	Description string `yaml:"description"`
}

// Plan is the ordered list of deferred calls of a build.
type Plan []Action

// Count returns the number of actions in phase.
func (p Plan) Count(phase string) int {
	n := 0
	for _, a := range p {
		if a.Phase == phase {
			n++
		}
	}
	return n
}

func buildPlan(defs []*Definition, initializers []Initializer) Plan {
	var plan Plan
	for _, in := range initializers {
		plan = append(plan, Action{Phase: PhaseInitialize, Description: in.Description})
	}
	for _, def := range defs {
		for _, s := range def.setups {
			plan = append(plan, Action{Phase: PhaseSetup, Service: def.Name, Description: s.Description})
		}
	}
	return plan
}
