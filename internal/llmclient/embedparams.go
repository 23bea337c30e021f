package llmclient

import "fmt"

// EmbeddingParameters carries the embedding model, its dimensionality, and the cosine
// distance thresholds used to decide whether a retrieved candidate is close enough to
// count as "relevant" (SectionThreshold) or "the definition" (DefinitionThreshold).
// Thresholds are tuned per model/dimension pair, not universal constants, so an unknown
// combination is a configuration error rather than a silently wrong default.
type EmbeddingParameters struct {
	Model               string
	Dimensions          int
	SectionThreshold    float32
	DefinitionThreshold float32
}

type embeddingProfile struct {
	section, definition float32
}

var embeddingThresholds = map[string]map[int]embeddingProfile{
	"text-embedding-ada-002": {
		1536: {section: 0.15, definition: 0.20},
	},
	"text-embedding-3-large": {
		1024: {section: 0.38, definition: 0.45},
		3072: {section: 0.40, definition: 0.45},
	},
	"text-embedding-004": {
		768: {section: 0.25, definition: 0.20},
	},
}

// NewEmbeddingParameters looks up the threshold profile for model/dimensions.
func NewEmbeddingParameters(model string, dimensions int) (*EmbeddingParameters, error) {
	byDim, ok := embeddingThresholds[model]
	if !ok {
		return nil, fmt.Errorf("llmclient: unknown embedding model %q", model)
	}
	profile, ok := byDim[dimensions]
	if !ok {
		return nil, fmt.Errorf("llmclient: embedding model %q has no threshold profile for %d dimensions", model, dimensions)
	}
	return &EmbeddingParameters{
		Model:               model,
		Dimensions:          dimensions,
		SectionThreshold:    profile.section,
		DefinitionThreshold: profile.definition,
	}, nil
}
