/*
Package dsl builds workflow graphs in Go instead of JSON or YAML.

	b := dsl.New()
	b.Prompt("prompt-1").To("orchestrator-1")
	b.Agent("orchestrator-1", domain.KindOrchestrator).To("sampler-1", "image_generator-1")
	b.Agent("sampler-1", domain.KindSampler).To("response-1")
	b.Agent("image_generator-1", domain.KindImageGenerator).Set("style", "watercolor").To("response-1")
	b.Response("response-1")

	graph, err := b.Build()

The result runs directly on an engine or can be saved as a workflow with
Builder.Workflow.
*/
package dsl
