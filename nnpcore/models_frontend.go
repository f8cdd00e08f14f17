package nnpcore

// NewFrontendModelTable builds the frontend-side model registry from the
// same modelSpecs backend tables are built from, so invariant M1 (counts
// agree tensor-for-tensor) holds without duplicating the layer shapes.
func NewFrontendModelTable() FrontendModelTable {
	table := make(FrontendModelTable, len(modelSpecs))
	for _, spec := range modelSpecs {
		model := FrontendModel{Name: spec.name}
		for _, t := range spec.tensors {
			model.Tensors = append(model.Tensors, FrontendTensor{
				Name:  t.name,
				Count: t.count,
			})
		}
		table[spec.name] = model
	}
	return table
}
