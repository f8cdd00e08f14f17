package nnpcore

// modelSpec names a model and lists the (tensor name, element count) pairs
// it carries, in publication order. It is the single source of truth both
// BackendModelTable and FrontendModelTable are built from, which is what
// guarantees invariant M1 (the two sides agree tensor-for-tensor) by
// construction rather than by manual bookkeeping on each side.
//
// The element counts mirror the real layer shapes of the named
// torchvision architectures (flattened); the weight values themselves are
// synthetic, since the original embedded arrays are external pretrained
// data out of this repository's scope (spec.md §1).
type modelSpec struct {
	name    string
	tensors []struct {
		name  string
		count int
	}
}

var modelSpecs = []modelSpec{
	{
		name: "squeezenet1_0",
		tensors: []struct {
			name  string
			count int
		}{
			{"features.0.weight", 96 * 3 * 7 * 7},
			{"features.0.bias", 96},
			{"features.3.squeeze.weight", 16 * 96},
			{"features.3.expand1x1.weight", 64 * 16},
			{"features.3.expand3x3.weight", 64 * 16 * 3 * 3},
			{"classifier.1.weight", 1000 * 512},
			{"classifier.1.bias", 1000},
		},
	},
	{
		name: "resnet18",
		tensors: []struct {
			name  string
			count int
		}{
			{"conv1.weight", 64 * 3 * 7 * 7},
			{"bn1.weight", 64},
			{"bn1.bias", 64},
			{"layer1.0.conv1.weight", 64 * 64 * 3 * 3},
			{"layer1.0.conv2.weight", 64 * 64 * 3 * 3},
			{"fc.weight", 1000 * 512},
			{"fc.bias", 1000},
		},
	},
	{
		name: "alexnet",
		tensors: []struct {
			name  string
			count int
		}{
			{"features.0.weight", 64 * 3 * 11 * 11},
			{"features.0.bias", 64},
			{"classifier.6.weight", 1000 * 4096},
			{"classifier.6.bias", 1000},
		},
	},
	{
		name: "densenet121",
		tensors: []struct {
			name  string
			count int
		}{
			{"features.conv0.weight", 64 * 3 * 7 * 7},
			{"features.norm0.weight", 64},
			{"features.norm0.bias", 64},
			{"classifier.weight", 1000 * 1024},
			{"classifier.bias", 1000},
		},
	},
	{
		name: "vgg11",
		tensors: []struct {
			name  string
			count int
		}{
			{"features.0.weight", 64 * 3 * 3 * 3},
			{"features.0.bias", 64},
			{"classifier.6.weight", 1000 * 4096},
			{"classifier.6.bias", 1000},
		},
	},
}

// syntheticWeights deterministically fills a float32 slice standing in for
// pretrained weight data; the value pattern itself carries no meaning.
func syntheticWeights(count int) []float32 {
	out := make([]float32, count)
	for i := range out {
		out[i] = float32(i%997) * 1e-3
	}
	return out
}

// NewBackendModelTable builds the backend-side model registry: one entry per
// modelSpec, with synthetic weight data in place of the embedded pretrained
// arrays the original links in statically.
func NewBackendModelTable() BackendModelTable {
	table := make(BackendModelTable, len(modelSpecs))
	for _, spec := range modelSpecs {
		model := BackendModel{Name: spec.name}
		for _, t := range spec.tensors {
			model.Tensors = append(model.Tensors, BackendTensor{
				Name: t.name,
				Data: syntheticWeights(t.count),
			})
		}
		table[spec.name] = model
	}
	return table
}
