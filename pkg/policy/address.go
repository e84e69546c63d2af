// Package policy implements the acceptance rules applied to inbound mail:
// mailbox name syntax, the mailbox prefix blacklist, the recipient domain
// rule, and the banned sender domain list.
package policy

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"

	"github.com/driftmail/driftmail/pkg/config"
)

// mailboxRE is the shape of an acceptable normalized mailbox name: lowercase,
// 1 to 64 characters, leading character alphanumeric.
var mailboxRE = regexp.MustCompile(`^[a-z0-9][a-z0-9._+-]{0,63}$`)

// Addressing applies the configured address acceptance policy.
type Addressing struct {
	Config *config.Root
}

// ValidMailboxName reports whether name is a well formed normalized mailbox
// local part.
func ValidMailboxName(name string) bool {
	return mailboxRE.MatchString(name)
}

// ExtractMailbox normalizes an email address or bare local part into the
// mailbox name used as the storage key.
func (a *Addressing) ExtractMailbox(address string) (string, error) {
	local, domain, err := parseEmailAddress(address)
	if err != nil {
		return "", err
	}
	if domain != "" && !ValidateDomainPart(domain) {
		return "", fmt.Errorf("domain part %q in %q failed validation", domain, address)
	}
	name := strings.ToLower(local)
	if !ValidMailboxName(name) {
		return "", fmt.Errorf("invalid mailbox name %q", name)
	}
	return name, nil
}

// NormalizeMailbox resolves a query address or bare mailbox name into the
// canonical mailbox plus its full email form. Surrounding angle brackets and
// case are stripped. When a recipient domain is configured, addresses
// carrying a different domain are rejected and bare names gain the
// configured domain.
func (a *Addressing) NormalizeMailbox(input string) (mailbox string, email string, err error) {
	value := strings.TrimSpace(input)
	value = strings.TrimLeft(value, "<")
	value = strings.TrimRight(value, ">")
	want := a.Config.Policy.RecipientDomain
	if strings.Contains(value, "@") {
		local, domain, err := parseEmailAddress(value)
		if err != nil {
			return "", "", err
		}
		if !ValidateDomainPart(domain) {
			return "", "", fmt.Errorf("domain part %q in %q failed validation", domain, value)
		}
		domain = strings.ToLower(domain)
		if want != "" && domain != want {
			return "", "", fmt.Errorf("email domain must be %s", want)
		}
		mailbox = strings.ToLower(local)
		if !ValidMailboxName(mailbox) {
			return "", "", fmt.Errorf("invalid mailbox name %q", mailbox)
		}
		return mailbox, mailbox + "@" + domain, nil
	}
	mailbox = strings.ToLower(value)
	if !ValidMailboxName(mailbox) {
		return "", "", fmt.Errorf("invalid mailbox name %q", mailbox)
	}
	if want == "" {
		return mailbox, mailbox, nil
	}
	return mailbox, mailbox + "@" + want, nil
}

// NewRecipient parses an RCPT TO address into a Recipient. Unparsable
// addresses error; policy violations are reported by Recipient.ShouldAccept
// so the caller can distinguish the two.
func (a *Addressing) NewRecipient(address string) (*Recipient, error) {
	local, domain, err := parseEmailAddress(address)
	if err != nil {
		return nil, err
	}
	if domain != "" && !ValidateDomainPart(domain) {
		return nil, fmt.Errorf("domain part %q in %q failed validation", domain, address)
	}
	return &Recipient{
		Address:    mail.Address{Address: address},
		addrPolicy: a,
		LocalPart:  local,
		Domain:     strings.ToLower(domain),
		Mailbox:    strings.ToLower(local),
	}, nil
}

// NewOrigin parses a MAIL FROM address into an Origin. The empty address is
// the SMTP null reverse-path used by bounce messages and is always accepted.
func (a *Addressing) NewOrigin(address string) (*Origin, error) {
	if address == "" {
		return &Origin{addrPolicy: a, Null: true}, nil
	}
	local, domain, err := parseEmailAddress(address)
	if err != nil {
		return nil, err
	}
	return &Origin{
		Address:    mail.Address{Address: address},
		addrPolicy: a,
		LocalPart:  local,
		Domain:     strings.ToLower(domain),
	}, nil
}

// BlockedMailbox reports whether the normalized mailbox name starts with one
// of the blacklisted prefixes.
func (a *Addressing) BlockedMailbox(mailbox string) bool {
	for _, prefix := range a.Config.Policy.MailboxBlacklist {
		if prefix != "" && strings.HasPrefix(mailbox, prefix) {
			return true
		}
	}
	return false
}

// AcceptsRecipientDomain reports whether mail addressed to domain is
// accepted. An empty RecipientDomain setting accepts every domain.
func (a *Addressing) AcceptsRecipientDomain(domain string) bool {
	want := a.Config.Policy.RecipientDomain
	if want == "" {
		return true
	}
	return strings.ToLower(domain) == want
}

// AcceptsSenderDomain reports whether MAIL FROM on domain is accepted.
func (a *Addressing) AcceptsSenderDomain(domain string) bool {
	domain = strings.ToLower(domain)
	for _, banned := range a.Config.SMTP.BannedSenderDomains {
		if banned != "" && domain == banned {
			return false
		}
	}
	return true
}

// ParseEmailAddress splits an email address into its local and domain parts.
// An error is returned if either part fails validation following the
// guidelines in RFC 3696.
func ParseEmailAddress(address string) (local string, domain string, err error) {
	local, domain, err = parseEmailAddress(address)
	if err != nil {
		return "", "", err
	}
	if !ValidateDomainPart(domain) {
		return "", "", errors.New("domain part validation failed")
	}
	return local, domain, nil
}

// ValidateDomainPart returns true if the domain part complies with RFC 3696
// and RFC 1035.
func ValidateDomainPart(domain string) bool {
	if len(domain) == 0 || len(domain) > 255 {
		return false
	}
	if domain[len(domain)-1] != '.' {
		domain += "."
	}
	prev := '.'
	labelLen := 0
	hasAlphaNum := false
	for _, c := range domain {
		switch {
		case ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') ||
			('0' <= c && c <= '9') || c == '_':
			hasAlphaNum = true
			labelLen++
		case c == '-':
			if prev == '.' {
				// Label cannot lead with a hyphen.
				return false
			}
			labelLen++
		case c == '.':
			if prev == '.' || prev == '-' {
				// Label cannot end with a hyphen or be empty.
				return false
			}
			if labelLen > 63 || !hasAlphaNum {
				return false
			}
			labelLen = 0
			hasAlphaNum = false
		default:
			return false
		}
		prev = c
	}
	return true
}

// parseEmailAddress splits an address into local and domain parts; the domain
// part is optional and not validated. Quoted local parts are not supported:
// the strict mailbox name rules make them unusable here anyway.
func parseEmailAddress(address string) (local string, domain string, err error) {
	if address == "" {
		return "", "", errors.New("empty address")
	}
	if len(address) > 320 {
		return "", "", errors.New("address exceeds 320 characters")
	}
	if address[0] == '@' {
		return "", "", errors.New("address cannot start with @ symbol")
	}
	if address[0] == '.' {
		return "", "", errors.New("address cannot start with a period")
	}
	local = address
	if i := strings.LastIndexByte(address, '@'); i >= 0 {
		local, domain = address[:i], address[i+1:]
	}
	if local == "" {
		return "", "", errors.New("empty local part")
	}
	if len(local) > 128 {
		return "", "", errors.New("local part must not exceed 128 characters")
	}
	if strings.Contains(local, "..") {
		return "", "", errors.New("sequence of periods is not permitted")
	}
	if local[len(local)-1] == '.' {
		return "", "", errors.New("local part cannot end with a period")
	}
	for i := 0; i < len(local); i++ {
		c := local[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case strings.IndexByte("!#$%&'*+-/=?^_`.{|}~", c) >= 0:
			// Specials RFC 3696 permits unquoted.
		default:
			return "", "", fmt.Errorf("character %q must be quoted", c)
		}
	}
	return local, domain, nil
}
