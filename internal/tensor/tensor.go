// Package tensor provides a minimal dense float64 tensor: a shape plus flat
// row-major storage. Layers index into the flat data directly; there is no
// broadcasting, no view machinery, no device notion.
package tensor

import (
	"fmt"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{32, 1, 28, 28} is a batch of 32 single-channel 28×28 images.
type Shape []int

// NumElements returns the total number of elements for the shape.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Equal reports whether two shapes have identical dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i, dim := range s {
		if dim != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	out := make(Shape, len(s))
	copy(out, s)
	return out
}

// String returns a human-readable shape like [32 1 28 28].
func (s Shape) String() string {
	return fmt.Sprintf("%v", []int(s))
}

// Tensor is a dense row-major float64 tensor.
//
// Data is stored contiguously; element (i, j, k, ...) of a tensor with shape
// [A, B, C, ...] lives at index ((i*B)+j)*C+k ... in Data().
type Tensor struct {
	shape Shape
	data  []float64
}

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) *Tensor {
	return &Tensor{
		shape: shape.Clone(),
		data:  make([]float64, shape.NumElements()),
	}
}

// FromSlice creates a tensor that takes ownership of data.
// Returns an error if the data length does not match the shape.
func FromSlice(data []float64, shape Shape) (*Tensor, error) {
	if len(data) != shape.NumElements() {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)",
			len(data), shape, shape.NumElements())
	}
	return &Tensor{shape: shape.Clone(), data: data}, nil
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float64) *Tensor {
	t := New(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// Shape returns the tensor's shape. The caller must not modify it.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Data returns the flat row-major storage. Mutations are visible to every
// holder of the tensor; code that must not alias works on a Clone.
func (t *Tensor) Data() []float64 {
	return t.data
}

// NumElements returns the total element count.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	out := New(t.shape)
	copy(out.data, t.data)
	return out
}

// Reshape returns a tensor sharing t's storage with a new shape.
// Panics if the element counts differ; reshaping never copies.
func (t *Tensor) Reshape(shape Shape) *Tensor {
	if shape.NumElements() != len(t.data) {
		panic(fmt.Sprintf("tensor: cannot reshape %v to %v", t.shape, shape))
	}
	return &Tensor{shape: shape.Clone(), data: t.data}
}

// Equal reports whether two tensors have identical shape and bit-identical
// contents. NaNs compare unequal, as in ==.
func (t *Tensor) Equal(other *Tensor) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		if v != other.data[i] {
			return false
		}
	}
	return true
}
