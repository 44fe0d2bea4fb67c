package domain

import "strings"

// ModelKind selects the captioning backend.
// Values include ModelOllama, ModelHosted, ModelLlamaCpp, ModelDual, ModelVision, and ModelMLX.
type ModelKind string

const (
	ModelOllama   ModelKind = "OLModel"
	ModelHosted   ModelKind = "HFModel"
	ModelLlamaCpp ModelKind = "LCPModel"
	ModelDual     ModelKind = "DualModel"
	ModelVision   ModelKind = "VisionModel"
	ModelMLX      ModelKind = "MLXModel"
)

// ModelKinds lists every known backend in CLI order.
var ModelKinds = []ModelKind{
	ModelOllama,
	ModelHosted,
	ModelLlamaCpp,
	ModelDual,
	ModelVision,
	ModelMLX,
}

// Valid reports whether k names a known backend.
func (k ModelKind) Valid() bool {
	for _, known := range ModelKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ProcessorName returns the kind without its "Model" suffix, e.g. "OL" for OLModel.
func (k ModelKind) ProcessorName() string {
	return strings.TrimSuffix(string(k), "Model")
}

// String implements fmt.Stringer.
func (k ModelKind) String() string {
	return string(k)
}

// ModelKindNames returns the string form of ModelKinds.
func ModelKindNames() []string {
	names := make([]string, len(ModelKinds))
	for i, k := range ModelKinds {
		names[i] = string(k)
	}
	return names
}
