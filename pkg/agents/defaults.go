package agents

import "github.com/aretw0/lattice/pkg/domain"

// NewDefaultRegistry registers every built-in agent kind against deps.
func NewDefaultRegistry(deps Deps) *Registry {
	r := NewRegistry()
	r.Register(domain.KindSupervisor, &Supervisor{deps})
	r.Register(domain.KindOrchestrator, &Orchestrator{deps})
	r.Register(domain.KindSemanticSearch, &SemanticSearch{deps})
	r.Register(domain.KindSampler, &Sampler{deps})
	r.Register(domain.KindSynthesis, &Synthesis{deps})
	r.Register(domain.KindSummarization, &Summarization{deps})
	r.Register(domain.KindFormatting, &Formatting{deps})
	r.Register(domain.KindTransformer, &Transformer{deps})
	r.Register(domain.KindTranslator, &Translator{deps})
	r.Register(domain.KindImageGenerator, &ImageGenerator{deps})
	return r
}
