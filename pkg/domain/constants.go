package domain

const (
	// DefaultUserID owns workflows saved without an explicit user.
	DefaultUserID = "default"

	// DefaultKnowledgeBase is searched when a request names none.
	DefaultKnowledgeBase = "legal"

	// ModelNone marks steps that did not call a model.
	ModelNone = "none"
)
