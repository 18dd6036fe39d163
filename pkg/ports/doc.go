/*
Package ports defines the interfaces at the boundary of the Lattice kernel.

The kernel only knows these contracts. Agents, retrieval, persistence and the
event transport live behind them and are injected by the caller.

# Key Interfaces

  - Agent / AgentResolver: the capability invoked for one node kind.
  - Retriever: semantic search consumed by retrieval-aware agents.
  - EventSink: the output boundary of a run.
  - WorkflowStore / WorkflowLibrary: persistence of graph definitions.
  - VectorStore: embedding storage behind the retrieval service.
*/
package ports
