package triples

// Attribute is an ordered path of string-or-number components. The
// first component conventionally names the collection (see
// Collection). It is embedded directly as one composite-key
// component rather than flattened, which is what makes "attribute
// prefix" scans (FindByAttribute, FindByAVE) cheap: a
// shorter attribute path is automatically a lexicographic prefix of
// every longer path that starts with it.
type Attribute []interface{}

// Attr is a convenience constructor: Attr("users", "name").
func Attr(parts ...interface{}) Attribute {
	a := make(Attribute, len(parts))
	copy(a, parts)
	return a
}

// Collection returns the attribute's first path component, the
// conventional collection name, or "" if the attribute is empty.
func (a Attribute) Collection() string {
	if len(a) == 0 {
		return ""
	}
	s, _ := a[0].(string)
	return s
}

// Equal reports whether two attribute paths have identical components.
func (a Attribute) Equal(b Attribute) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if CompareValues(a[i], b[i]) != 0 {
			return false
		}
	}
	return true
}

func (a Attribute) clone() Attribute {
	cp := make(Attribute, len(a))
	copy(cp, a)
	return cp
}

// collectionAttribute is the reserved attribute path that ExpireEntity
// leaves a tombstone fact under (invariant 5).
var collectionAttribute = Attribute{"_collection"}
