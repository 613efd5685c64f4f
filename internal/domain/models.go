package domain

// ModelInfo describes a known embedding model.
type ModelInfo struct {
	Name            string
	NativeDimension int
	Description     string
}

// KnownModels lists the embedding models the comparison tool ships presets
// for, with their native output dimensions. Models outside this table can
// still be used when the embedding configuration supplies the native
// dimension explicitly.
var KnownModels = map[string]ModelInfo{
	"all-mpnet-base-v2": {
		Name:            "all-mpnet-base-v2",
		NativeDimension: 768,
		Description:     "High-quality sentence embeddings, best for semantic similarity",
	},
	"all-MiniLM-L6-v2": {
		Name:            "all-MiniLM-L6-v2",
		NativeDimension: 384,
		Description:     "Fast and efficient, good balance of speed and quality",
	},
	"all-MiniLM-L12-v2": {
		Name:            "all-MiniLM-L12-v2",
		NativeDimension: 384,
		Description:     "Slightly larger model with better performance",
	},
	"paraphrase-multilingual-MiniLM-L12-v2": {
		Name:            "paraphrase-multilingual-MiniLM-L12-v2",
		NativeDimension: 384,
		Description:     "Multilingual model for cross-language similarity",
	},
	"distilbert-base-nli-mean-tokens": {
		Name:            "distilbert-base-nli-mean-tokens",
		NativeDimension: 768,
		Description:     "DistilBERT model optimized for natural language inference",
	},
}

// NativeDimension returns the native output dimension for a known model.
// Returns false for models not in the preset table.
func NativeDimension(model string) (int, bool) {
	info, ok := KnownModels[model]
	if !ok {
		return 0, false
	}
	return info.NativeDimension, true
}
