package sim

// Constant applies the same inputs at every step.
type Constant struct {
	u Control
}

func NewConstant(u Control) *Constant {
	return &Constant{u: u.clone()}
}

func (c *Constant) Compute(x State, t float64) Control {
	return c.u.clone()
}

func (u Control) clone() Control {
	c := make(Control, len(u))
	copy(c, u)
	return c
}

// PID drives one state towards Target through one input. The other inputs
// keep the values of Base.
type PID struct {
	Kp, Ki, Kd float64
	Target     float64
	State      int
	Input      int
	Base       Control

	integral float64
	prevErr  float64
	prevT    float64
	first    bool
}

func NewPID(kp, ki, kd, target float64, state, input int, base Control) *PID {
	return &PID{
		Kp:     kp,
		Ki:     ki,
		Kd:     kd,
		Target: target,
		State:  state,
		Input:  input,
		Base:   base.clone(),
		first:  true,
	}
}

func (p *PID) Compute(x State, t float64) Control {
	u := p.Base.clone()
	if p.State >= len(x) || p.Input >= len(u) {
		return u
	}

	err := p.Target - x[p.State]

	if p.first {
		p.prevErr = err
		p.prevT = t
		p.first = false
		u[p.Input] = p.Kp * err
		return u
	}

	dt := t - p.prevT
	if dt > 0 {
		p.integral += err * dt
		derivative := (err - p.prevErr) / dt

		u[p.Input] = p.Kp*err + p.Ki*p.integral + p.Kd*derivative

		p.prevErr = err
		p.prevT = t
		return u
	}
	u[p.Input] = p.Kp * err
	return u
}
