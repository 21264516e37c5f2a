package ir

// Namespace is the numeric namespace of a Subject.
type Namespace int

// NamespaceIndex is the base offset of the namespaces reserved for the
// fact store. 100 and 101 are historically unused.
const NamespaceIndex = 100

const (
	NSSpecial  Namespace = -1
	NSMain     Namespace = 0
	NSTalk     Namespace = 1
	NSUser     Namespace = 2
	NSCategory Namespace = 14

	NSProperty     Namespace = NamespaceIndex + 2
	NSPropertyTalk Namespace = NamespaceIndex + 3
	NSType         Namespace = NamespaceIndex + 4
	NSTypeTalk     Namespace = NamespaceIndex + 5
	NSConcept      Namespace = NamespaceIndex + 8
	NSConceptTalk  Namespace = NamespaceIndex + 9
)

// CanHoldContent reports whether subjects in ns can carry stored facts.
// Negative namespaces are virtual (special pages, media).
func (ns Namespace) CanHoldContent() bool {
	return ns >= 0
}
