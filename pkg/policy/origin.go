package policy

import (
	"net/mail"
)

// Origin represents a potential mail origin, allowing the acceptance policy
// for it to be queried.
type Origin struct {
	mail.Address
	addrPolicy *Addressing
	// Null is true for the empty reverse-path, MAIL FROM:<>.
	Null bool
	// LocalPart is the part of the address before @, as received.
	LocalPart string
	// Domain is the part of the address after @, lowercased.
	Domain string
}

// ShouldAccept reports whether mail from this origin is accepted. The null
// reverse-path always is; otherwise the sender domain must not be banned.
func (o *Origin) ShouldAccept() bool {
	if o.Null {
		return true
	}
	return o.addrPolicy.AcceptsSenderDomain(o.Domain)
}
