/*
Package lattice executes agent workflows described as directed graphs.

A workflow is a set of typed nodes (inputs, agents, outputs) joined by edges.
The engine drops nodes no input can reach, orders the rest topologically and
runs them one at a time over a shared execution context. Router nodes pick
branch groups; nodes in groups that were not picked are excluded together
with everything that only they feed.

# Usage

	eng, err := lattice.New()
	if err != nil {
		log.Fatal(err)
	}

	wf, err := eng.Lookup(ctx, "default", "basic_qa")
	if err != nil {
		log.Fatal(err)
	}

	res, err := eng.Run(ctx, wf.Graph(), "What does clause 4 require?")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Answer)

Without options the engine runs offline with the local provider. Use
WithProvider, WithRetrieval and WithWorkflows to plug real backends, and
Execute with a ports.EventSink to stream progress events.

# Observability

Lifecycle hooks fire on node enter and leave and at the end of each run.
The observability package turns them into Prometheus metrics and
OpenTelemetry spans:

	m, _ := observability.NewMetrics(prometheus.DefaultRegisterer)
	tr := observability.NewTracer(nil)
	eng, _ := lattice.New(lattice.WithLifecycleHooks(
		domain.CombineHooks(m.Hooks(), tr.Hooks()),
	))
*/
package lattice
