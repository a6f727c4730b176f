// Package registry tracks ownership of A records through TXT records stored
// next to them in the same zone.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"gitlab.bluewillows.net/root/clouddns-nat-helper/pkg/provider"
)

// Ownership TXT wire format: clouddns_nat_<owner>;rec: <TYPE>
//
// The record's own name is the target name, so only the owner and the target
// type are encoded. Values written by earlier releases use the same layout.
const (
	Ident        = "clouddns_nat"
	DefaultOwner = "default"

	separator = ";"
	typeField = "rec: "
)

// ErrNotOwnership is returned by Parse for TXT values that do not carry the
// ownership prefix. Such records belong to someone else and are ignored.
var ErrNotOwnership = errors.New("not an ownership record")

// Ownership is the decoded content of an ownership TXT record.
type Ownership struct {
	Owner string
	Name  string
	Type  provider.RecordType
}

// ParseError reports an ownership TXT record that could not be decoded.
type ParseError struct {
	Name   string
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed ownership record %s %q: %s", e.Name, e.Value, e.Reason)
}

// SanitizeOwner strips characters that cannot appear in the wire format.
func SanitizeOwner(owner string) string {
	owner = strings.TrimSpace(strings.ReplaceAll(owner, separator, ""))
	if owner == "" {
		return DefaultOwner
	}
	return owner
}

// IsOwnershipValue reports whether a TXT value claims to be an ownership record.
func IsOwnershipValue(value string) bool {
	return strings.HasPrefix(value, Ident)
}

// Format encodes o as a TXT value.
func Format(o Ownership) string {
	return Ident + "_" + o.Owner + separator + typeField + string(o.Type)
}

// Parse decodes the TXT value of the record at name.
// Values without the ownership prefix yield ErrNotOwnership; values with the
// prefix that do not decode yield *ParseError. Every value Parse accepts
// formats back to itself.
func Parse(name, value string) (Ownership, error) {
	if !IsOwnershipValue(value) {
		return Ownership{}, ErrNotOwnership
	}

	malformed := func(reason string) (Ownership, error) {
		return Ownership{}, &ParseError{Name: name, Value: value, Reason: reason}
	}

	rest, ok := strings.CutPrefix(value, Ident+"_")
	if !ok {
		return malformed("missing owner")
	}

	owner, field, ok := strings.Cut(rest, separator)
	if !ok {
		return malformed("missing separator")
	}
	if owner == "" {
		return malformed("empty owner")
	}

	typeName, ok := strings.CutPrefix(field, typeField)
	if !ok {
		return malformed("missing record type")
	}

	var recordType provider.RecordType
	switch provider.RecordType(typeName) {
	case provider.RecordTypeA:
		recordType = provider.RecordTypeA
	case provider.RecordTypeAAAA:
		recordType = provider.RecordTypeAAAA
	default:
		return malformed(fmt.Sprintf("unsupported record type %q", typeName))
	}

	return Ownership{
		Owner: owner,
		Name:  provider.NormalizeName(name),
		Type:  recordType,
	}, nil
}
