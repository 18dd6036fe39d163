/*
Package domain contains the core models of the Lattice execution kernel.

It defines the static workflow graph, the per-run state and the records the
kernel produces. The package has no I/O and no third-party dependencies.

# Key Entities

  - Node / Edge / WorkflowGraph: the user-authored graph definition.
  - NodeKind: the fixed enumeration of input, output and agent kinds.
  - ExecutionContext: shared run state with a per-key merge policy.
  - AgentResult / RouteDecision: what an agent returns to the kernel.
  - StepRecord / Event: the ordered trace streamed to callers.
*/
package domain
