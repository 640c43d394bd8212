// Package optim implements stochastic gradient descent with classical
// momentum over flat parameter lists.
package optim

import (
	"fmt"

	"digitnet/internal/tensor"
)

// SGD holds the hyperparameters of momentum SGD. The zero momentum value
// degenerates to plain gradient descent.
type SGD struct {
	LR       float64
	Momentum float64
}

// State carries one velocity tensor per parameter, in the same order as the
// parameter list it was initialized from. Like parameters, state is replaced
// on every step rather than mutated.
type State struct {
	Velocity []*tensor.Tensor
}

// Init creates zero velocities matching the given parameters, so the first
// step is a pure gradient step scaled by the learning rate.
func (s SGD) Init(params []*tensor.Tensor) State {
	velocity := make([]*tensor.Tensor, len(params))
	for i, p := range params {
		velocity[i] = tensor.New(p.Shape())
	}
	return State{Velocity: velocity}
}

// Apply performs one update:
//
//	v' = momentum * v + grad
//	p' = p - lr * v'
//
// It returns fresh state and parameter lists, leaving all inputs untouched.
// Gradients, state, and params must be index-aligned and shape-aligned.
func (s SGD) Apply(grads []*tensor.Tensor, state State, params []*tensor.Tensor) (State, []*tensor.Tensor) {
	if len(grads) != len(params) || len(state.Velocity) != len(params) {
		panic(fmt.Sprintf("sgd: mismatched lengths: %d grads, %d velocities, %d params",
			len(grads), len(state.Velocity), len(params)))
	}

	newVelocity := make([]*tensor.Tensor, len(params))
	newParams := make([]*tensor.Tensor, len(params))

	for i, p := range params {
		if !p.Shape().Equal(grads[i].Shape()) || !p.Shape().Equal(state.Velocity[i].Shape()) {
			panic(fmt.Sprintf("sgd: shape mismatch at parameter %d: param %v, grad %v, velocity %v",
				i, p.Shape(), grads[i].Shape(), state.Velocity[i].Shape()))
		}

		v := tensor.New(p.Shape())
		next := tensor.New(p.Shape())

		vData := v.Data()
		nextData := next.Data()
		oldV := state.Velocity[i].Data()
		gradData := grads[i].Data()
		paramData := p.Data()

		for j := range vData {
			vData[j] = s.Momentum*oldV[j] + gradData[j]
			nextData[j] = paramData[j] - s.LR*vData[j]
		}

		newVelocity[i] = v
		newParams[i] = next
	}

	return State{Velocity: newVelocity}, newParams
}
