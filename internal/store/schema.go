package store

// Collection names managed by the durable store.
const (
	CollectionSentences = "sentences"
	CollectionGlossary  = "glossary"
	CollectionFeedback  = "feedback"
	CollectionAnalytics = "analytics"
	CollectionAIQueue   = "ai_queue"
	CollectionAICache   = "ai_cache"
)

// SchemaStep declares the collections a schema version introduces.
// Versions apply in order, one at a time; a collection is created exactly
// once, by the step that names it.
type SchemaStep struct {
	Version     int
	Collections []string
}

// schemaPlan is the full migration table. Opening a store applies version 1;
// later versions apply lazily, the first time one of their collections is
// touched.
var schemaPlan = []SchemaStep{
	{Version: 1, Collections: []string{CollectionSentences, CollectionGlossary, CollectionFeedback, CollectionAnalytics}},
	{Version: 2, Collections: []string{CollectionAIQueue}},
	{Version: 3, Collections: []string{CollectionAICache}},
}

// planVersionFor returns the schema version that introduces the collection,
// or 0 when the collection is not part of the plan.
func planVersionFor(collection string) int {
	for _, step := range schemaPlan {
		for _, name := range step.Collections {
			if name == collection {
				return step.Version
			}
		}
	}
	return 0
}
