package policy

import "net/mail"

// Recipient represents a potential mail recipient, allowing the acceptance
// policy for it to be queried.
type Recipient struct {
	mail.Address
	addrPolicy *Addressing
	// LocalPart is the part of the address before @, as received.
	LocalPart string
	// Domain is the part of the address after @, lowercased.
	Domain string
	// Mailbox is the normalized mailbox name for this recipient.
	Mailbox string
}

// ShouldAccept reports whether mail for this recipient is accepted. Checks
// apply in a fixed order: mailbox name syntax, then the prefix blacklist,
// then the recipient domain rule.
func (r *Recipient) ShouldAccept() bool {
	if !ValidMailboxName(r.Mailbox) {
		return false
	}
	if r.addrPolicy.BlockedMailbox(r.Mailbox) {
		return false
	}
	return r.addrPolicy.AcceptsRecipientDomain(r.Domain)
}
