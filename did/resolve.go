package did

import "slices"

// Resolve dereferences kid within doc.
//
// kid must equal a verification method id exactly; no normalization is
// applied. With a non-empty relationships set the id must also be listed
// under at least one of them. An empty set matches any method in the
// document. Every miss is a *NotFoundError.
func Resolve(doc *Document, kid KeyID, relationships ...Relationship) (VerificationMethod, error) {
	notFound := &NotFoundError{KeyID: kid, Relationships: slices.Clone(relationships)}
	if doc == nil {
		return VerificationMethod{}, notFound
	}
	idx := slices.IndexFunc(doc.methods, func(vm VerificationMethod) bool { return vm.ID == kid })
	if idx < 0 {
		return VerificationMethod{}, notFound
	}
	if len(relationships) == 0 {
		return doc.methods[idx], nil
	}
	for _, r := range relationships {
		if slices.Contains(doc.relationships[r], kid) {
			return doc.methods[idx], nil
		}
	}
	return VerificationMethod{}, notFound
}

// DereferenceKey is Resolve with d as the document.
func (d *Document) DereferenceKey(kid KeyID, relationships ...Relationship) (VerificationMethod, error) {
	return Resolve(d, kid, relationships...)
}

// ResolveDID expands a did:key into its document without any store lookup.
// The self key is listed under rels, or under the default relationships when
// rels is empty.
func ResolveDID(id DID, rels ...Relationship) (*Document, error) {
	kt, pub, err := PublicKeyFromDID(id)
	if err != nil {
		return nil, err
	}
	normalized, err := normalizeRelationships(rels)
	if err != nil {
		return nil, err
	}
	return buildKeyDocument(kt, pub, normalized)
}
