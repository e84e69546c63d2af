package message

import (
	"bytes"
	"fmt"
	"net/mail"
	"time"

	"github.com/driftmail/driftmail/pkg/stringutil"
	"github.com/jhillyerd/enmime/v2"
)

// rawSalvageMax caps how much of an unparseable message is preserved as
// plain text.
const rawSalvageMax = 4096

// parsed holds the fields extracted from one raw message source.
type parsed struct {
	from    string
	to      []string
	subject string
	date    time.Time
	content Content
}

// parseSource extracts display fields and bodies from a raw message source.
// envFrom and envTo supply SMTP envelope fallbacks for absent or mangled
// headers. Parse trouble degrades to diagnostics on the result, never an
// error: an unstorable message would violate the accept-everything contract.
func parseSource(source []byte, envFrom string, envTo []string) parsed {
	p := parsed{from: envFrom, to: envTo}
	env, err := enmime.ReadEnvelope(bytes.NewReader(source))
	if err != nil {
		p.content.ParseErrors = []string{fmt.Sprintf("envelope: %s", err)}
		if len(source) <= rawSalvageMax {
			p.content.Text = string(source)
		}
		return p
	}
	if from, err := env.AddressList("From"); err == nil && len(from) > 0 {
		p.from = from[0].String()
	} else if raw := env.GetHeader("From"); raw != "" {
		p.from = raw
	}
	if to, err := env.AddressList("To"); err == nil && len(to) > 0 {
		p.to = stringutil.StringAddressList(to)
	} else if raw := env.GetHeader("To"); raw != "" {
		p.to = []string{raw}
	}
	p.subject = env.GetHeader("Subject")
	if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		p.date = date
	}
	p.content.Text = env.Text
	p.content.HTML = env.HTML
	for _, e := range env.Errors {
		p.content.ParseErrors = append(p.content.ParseErrors,
			fmt.Sprintf("%s: %s", e.Name, e.Detail))
	}
	return p
}
