package selection

// DefaultStep is the packaging multiple the packet builder steps quantities by.
const DefaultStep = 10

// StepPolicy is a presentation rule for increment/decrement controls. The container
// still accepts any non-negative quantity.
type StepPolicy struct {
	Step int
}

func NewStepPolicy(step int) StepPolicy {
	if step <= 0 {
		step = DefaultStep
	}
	return StepPolicy{Step: step}
}

func (p StepPolicy) step() int {
	if p.Step <= 0 {
		return DefaultStep
	}
	return p.Step
}

func (p StepPolicy) Increment(current int) int {
	if current < 0 {
		current = 0
	}
	return current + p.step()
}

// Decrement floors at zero, which removes the entry.
func (p StepPolicy) Decrement(current int) int {
	next := current - p.step()
	if next < 0 {
		return 0
	}
	return next
}
