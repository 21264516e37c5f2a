// Package queryir is the intermediate representation of saved queries
// ("concept descriptions").
//
// A concept page stores one Description tree. The tree is persisted as
// JSON in the concept's "_CONC" value alongside its complexity metrics,
// and package querysql compiles it to SQL when the concept cache is
// rebuilt.
//
// DESCRIPTION NODES:
//
//	PropertyValue  subjects with a property, optionally restricted to a
//	               value or to page values matching a sub-description
//	Namespace      subjects in a namespace
//	Category       members of a category
//	ConceptRef     members of another concept (its cached result set)
//	Conjunction    intersection of parts
//	Disjunction    union of parts
//	Negation       complement of the inner description
//
// Description is a sealed interface; backends switch over the node types
// exhaustively.
//
// METRICS:
//
// Size is the number of nodes in the tree. Depth is the nesting depth of
// property chains (a PropertyValue whose Sub contains another
// PropertyValue has depth 2). Features is the bitwise OR of the query
// features each node uses. The concept cache manager compares these
// against configured ceilings to decide whether a concept is "hard".
package queryir
