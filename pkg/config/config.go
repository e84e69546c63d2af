// Package config provides the DriftMail configuration, loaded from the
// process environment.
package config

import (
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	prefix      = "driftmail"
	tableFormat = `DriftMail is configured via the environment. The following environment
variables can be used:

KEY	DEFAULT	REQUIRED	DESCRIPTION
{{range .}}{{usage_key .}}	{{usage_default .}}	{{usage_required .}}	{{usage_description .}}
{{end}}`
)

var (
	// Version of this build, set by main.
	Version = ""

	// BuildDate for this build, set by main.
	BuildDate = ""
)

// Root wraps all other configurations.
type Root struct {
	LogLevel string `required:"true" default:"info" desc:"debug, info, warn, or error"`
	SMTP     SMTP
	Policy   Policy
	Storage  Storage
	Web      Web
	Ext      Ext
}

// SMTP contains the SMTP server configuration.
type SMTP struct {
	Addr                string        `required:"true" default:"0.0.0.0:25" desc:"SMTP server IP4 host:port"`
	Domain              string        `required:"true" default:"driftmail.local" desc:"Banner and EHLO domain"`
	MaxRecipients       int           `required:"true" default:"200" desc:"Maximum RCPT TO per transaction"`
	MaxMessageBytes     int           `required:"true" default:"10485760" desc:"Maximum DATA size in bytes"`
	Timeout             time.Duration `required:"true" default:"60s" desc:"Network read/write timeout"`
	SessionTimeout      time.Duration `required:"true" default:"10m" desc:"Whole session wall clock limit"`
	BannedSenderDomains []string      `desc:"Sender domains rejected at MAIL FROM"`
	Debug               bool          `ignored:"true"`
}

// Policy contains the recipient acceptance rules.
type Policy struct {
	MailboxBlacklist []string `default:"admin,master,info,mail,webadmin,webmaster,noreply,system,postmaster" desc:"Blocked mailbox name prefixes"`
	RecipientDomain  string   `desc:"When set, only this recipient domain is accepted"`
}

// Storage contains the mail store configuration.
type Storage struct {
	MailboxCap      int           `required:"true" default:"200" desc:"Maximum messages per mailbox"`
	RetentionPeriod time.Duration `required:"true" default:"1440m" desc:"Duration to retain messages"`
	SweepInterval   time.Duration `required:"true" default:"1m" desc:"Time between retention sweeps"`
}

// Web contains the HTTP server configuration.
type Web struct {
	Addr           string `required:"true" default:"0.0.0.0:3000" desc:"HTTP server IP4 host:port"`
	BasePath       string `desc:"Base path prefix when behind a proxy"`
	MonitorHistory int    `required:"true" default:"30" desc:"Monitor remembered messages"`
}

// Ext contains the extension host configuration.
type Ext struct {
	LuaScript string `default:"driftmail.lua" desc:"Path to the Lua extension script"`
}

// Process loads and parses configuration from the environment.
func Process() (*Root, error) {
	c := &Root{}
	err := envconfig.Process(prefix, c)
	c.SMTP.Domain = strings.ToLower(c.SMTP.Domain)
	c.Policy.RecipientDomain = strings.ToLower(c.Policy.RecipientDomain)
	for i, d := range c.SMTP.BannedSenderDomains {
		c.SMTP.BannedSenderDomains[i] = strings.ToLower(d)
	}
	for i, p := range c.Policy.MailboxBlacklist {
		c.Policy.MailboxBlacklist[i] = strings.ToLower(p)
	}
	return c, err
}

// Usage prints out the envconfig usage to Stderr.
func Usage() {
	tabs := tabwriter.NewWriter(os.Stderr, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef(prefix, &Root{}, tabs, tableFormat); err != nil {
		log.Fatalf("Unable to parse env config: %v", err)
	}
	tabs.Flush()
}
