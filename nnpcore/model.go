package nnpcore

import "fmt"

// BackendTensor points at a contiguous slab of an actual weight array. The
// backend never copies these into WeightBuffer until the first frontend for
// that model arrives.
type BackendTensor struct {
	Name string
	Data []float32
}

// Count is the element count of the tensor.
func (t BackendTensor) Count() int { return len(t.Data) }

// BackendModel is the backend side of a ModelDescriptor: name plus an
// ordered sequence of tensors carrying the actual weight data.
type BackendModel struct {
	Name    string
	Tensors []BackendTensor
}

// FrontendTensor carries only a name and the element count a frontend
// expects to find at that position of the descriptor; it never sees the
// backend's pointer.
type FrontendTensor struct {
	Name  string
	Count int
}

// FrontendModel is the frontend side of a ModelDescriptor.
type FrontendModel struct {
	Name    string
	Tensors []FrontendTensor
}

// TotalBytes is the number of bytes the model's tensors occupy when
// concatenated in descriptor order, float32 at a time.
func (m BackendModel) TotalBytes() int {
	total := 0
	for _, t := range m.Tensors {
		total += t.Count() * 4
	}
	return total
}

// TotalBytes mirrors BackendModel.TotalBytes using the frontend's own tensor
// descriptors, per invariant M1 these must agree.
func (m FrontendModel) TotalBytes() int {
	total := 0
	for _, t := range m.Tensors {
		total += t.Count * 4
	}
	return total
}

// TotalElements is the sum of all tensor element counts.
func (m FrontendModel) TotalElements() int {
	total := 0
	for _, t := range m.Tensors {
		total += t.Count
	}
	return total
}

// BackendModelTable is a name-keyed registry of backend model descriptors,
// built once at process start from models_backend.go and never mutated
// afterward. Model dispatch collapses to a single map lookup instead of the
// original's chain of strcmp calls.
type BackendModelTable map[string]BackendModel

// Lookup returns the named model, or ErrUnknownModel.
func (t BackendModelTable) Lookup(name string) (BackendModel, error) {
	m, ok := t[name]
	if !ok {
		return BackendModel{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// FrontendModelTable is the frontend-side counterpart of BackendModelTable.
type FrontendModelTable map[string]FrontendModel

// Lookup returns the named model, or ErrUnknownModel.
func (t FrontendModelTable) Lookup(name string) (FrontendModel, error) {
	m, ok := t[name]
	if !ok {
		return FrontendModel{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// validateModelName enforces the §6 fixed limit on model name length. It is
// called by Config.Validate for a frontend's configured model; the store
// read and write paths do not call it.
func validateModelName(name string) error {
	if len(name) > MaxModelNameLen {
		return fmt.Errorf("%w: %q is %d bytes", ErrModelNameTooLong, name, len(name))
	}
	return nil
}
