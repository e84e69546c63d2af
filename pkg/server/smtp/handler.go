package smtp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/mail"
	"net/textproto"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/driftmail/driftmail/pkg/extension/event"
	"github.com/driftmail/driftmail/pkg/policy"
	"github.com/rs/zerolog"
)

// State tracks the current mode of our SMTP state machine.
type State int

const (
	// GREET State: Waiting for HELO or EHLO.
	GREET State = iota
	// READY State: Got HELO, waiting for MAIL.
	READY
	// MAIL State: Got MAIL, accepting RCPTs.
	MAIL
	// DATA State: Got DATA, waiting for "."
	DATA
	// QUIT State: Client requested end of session.
	QUIT
)

// maxProtocolErrors is how many 5xx protocol violations a session tolerates
// before it is force closed with a 421.
const maxProtocolErrors = 3

// fromRegex captures the from address and optional parameters.  Matches FROM,
// while accepting '>' as quoted pair and in double quoted strings.  (?i)
// makes the regex case insensitive, (?:) is non-grouping sub-match.
var fromRegex = regexp.MustCompile(
	`(?i)^FROM:\s*<((?:(?:\\>|[^>])+|"[^"]+"@[^>])+)?>( ([\w= ]|=<>)+)?$`)

// paramRegex matches one ESMTP KEY=value parameter, leading space mandatory.
var paramRegex = regexp.MustCompile(` (\w+)=(\w+|<>)`)

func (s State) String() string {
	switch s {
	case GREET:
		return "GREET"
	case READY:
		return "READY"
	case MAIL:
		return "MAIL"
	case DATA:
		return "DATA"
	case QUIT:
		return "QUIT"
	}
	return "Unknown"
}

var commands = map[string]bool{
	"HELO": true,
	"EHLO": true,
	"MAIL": true,
	"RCPT": true,
	"DATA": true,
	"RSET": true,
	"NOOP": true,
	"VRFY": true,
	"QUIT": true,
}

// errMaxMessageSize aborts a DATA transaction whose payload crossed the
// configured limit.
var errMaxMessageSize = errors.New("maximum message size exceeded")

// Session holds the state of a single SMTP session.
type Session struct {
	*Server                          // Server this session belongs to.
	id           int                 // Session ID.
	conn         net.Conn            // TCP connection.
	remoteDomain string              // Remote domain from HELO command.
	remoteHost   string              // Remote host.
	sendError    error               // Last network send error.
	state        State               // Session state machine.
	text         *textproto.Conn     // Line oriented I/O for TCP conn.
	from         *policy.Origin      // Sender from MAIL command.
	recipients   []*policy.Recipient // Recipients from RCPT commands.
	logger       zerolog.Logger      // Session specific logger.
	debug        bool                // Print network traffic to stdout.
	start        time.Time           // Session open time, bounds its wall clock.
	errors       int                 // Protocol errors so far.
}

// NewSession creates a new Session for the given connection.
func NewSession(server *Server, id int, conn net.Conn, logger zerolog.Logger) *Session {
	remoteHost := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(remoteHost); err == nil {
		remoteHost = host
	}

	return &Session{
		Server:     server,
		id:         id,
		conn:       conn,
		state:      GREET,
		text:       textproto.NewConn(conn),
		remoteHost: remoteHost,
		recipients: make([]*policy.Recipient, 0),
		logger:     logger,
		debug:      server.config.Debug,
		start:      time.Now(),
	}
}

func (s *Session) String() string {
	return fmt.Sprintf("Session{id: %v, state: %v}", s.id, s.state)
}

// Session flow:
//  1. Send initial greeting
//  2. Receive cmd
//  3. If good cmd, respond, optionally change state
//  4. If bad cmd, respond error
//  5. Goto 2
func (s *Server) startSession(id int, conn net.Conn, logger zerolog.Logger) {
	logger = logger.Hook(logHook{}).With().
		Str("module", "smtp").
		Str("remote", conn.RemoteAddr().String()).
		Int("session", id).Logger()
	logger.Info().Msg("Starting SMTP session")

	expConnectsTotal.Add(1)
	expConnectsCurrent.Add(1)
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn().Err(err).Msg("Closing connection")
		}
		s.wg.Done()
		expConnectsCurrent.Add(-1)
	}()

	ssn := NewSession(s, id, conn, logger)
	ssn.greet()

	// This is our command reading loop.
	for ssn.state != QUIT && ssn.sendError == nil {
		if ssn.state == DATA {
			// Special case, does not use SMTP command format.
			ssn.dataHandler()
			continue
		}
		line, err := ssn.readLine()
		if err != nil {
			// readLine() returned an error.
			if err == io.EOF {
				switch ssn.state {
				case GREET, READY:
					// EOF is common here.
					ssn.logger.Info().Msgf("Client closed connection (state %v)", ssn.state)
				default:
					ssn.logger.Warn().Msgf("Got EOF while in state %v", ssn.state)
				}
				break
			}
			// Not an EOF.
			ssn.logger.Warn().Msgf("Connection error: %v", err)
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				ssn.send("221 Idle timeout, bye bye")
				break
			}
			ssn.send("221 Connection error, sorry")
			break
		}

		cmd, arg, ok := ssn.parseCmd(line)
		if !ok {
			ssn.protocolError("501 Syntax error, command garbled")
			continue
		}
		if cmd == "" {
			ssn.protocolError("500 Speak up")
			continue
		}
		if !commands[cmd] {
			ssn.protocolError(fmt.Sprintf("500 Syntax error, %v command unrecognized", cmd))
			ssn.logger.Warn().Msgf("Unrecognized command: %v", cmd)
			continue
		}

		// QUIT is honored in every state.
		if cmd == "QUIT" {
			ssn.send(fmt.Sprintf("221 %v bye", ssn.config.Domain))
			ssn.enterState(QUIT)
			continue
		}

		// Nothing else is until the client has greeted us.
		if ssn.state == GREET {
			ssn.greetHandler(cmd, arg)
			continue
		}

		// Commands we handle in any post-greeting state.
		switch cmd {
		case "VRFY":
			ssn.send("252 Cannot VRFY user, but will accept message")
			continue
		case "NOOP":
			ssn.send("250 I have successfully done nothing")
			continue
		case "RSET":
			// Reset session.
			ssn.logger.Debug().Msg("Resetting session state on RSET request")
			ssn.reset()
			ssn.send("250 Session reset")
			continue
		}

		// Send command to handler for current state.
		switch ssn.state {
		case READY:
			ssn.readyHandler(cmd, arg)
			continue
		case MAIL:
			ssn.mailHandler(cmd, arg)
			continue
		}
		ssn.logger.Error().Msgf("Session entered unexpected state %v", ssn.state)
		break
	}

	if ssn.sendError != nil {
		ssn.logger.Warn().Msgf("Network send error: %v", ssn.sendError)
	}
	ssn.logger.Info().Msg("Closing connection")
}

// GREET state -> waiting for HELO or EHLO.
func (s *Session) greetHandler(cmd string, arg string) {
	switch cmd {
	case "HELO":
		domain, err := parseHelloArgument(arg)
		if err != nil {
			s.protocolError("501 Domain/address argument required for HELO")
			return
		}
		s.remoteDomain = domain
		s.send(fmt.Sprintf("250 %v at your service", s.config.Domain))
		s.enterState(READY)
	case "EHLO":
		domain, err := parseHelloArgument(arg)
		if err != nil {
			s.protocolError("501 Domain/address argument required for EHLO")
			return
		}
		s.remoteDomain = domain
		s.send(fmt.Sprintf("250-%v greets %v", s.config.Domain, domain))
		s.send(fmt.Sprintf("250-SIZE %v", s.config.MaxMessageBytes))
		s.send("250 8BITMIME")
		s.enterState(READY)
	default:
		s.ooSeq(cmd)
	}
}

func parseHelloArgument(arg string) (string, error) {
	domain := arg
	if idx := strings.IndexRune(arg, ' '); idx >= 0 {
		domain = arg[:idx]
	}
	if domain == "" {
		return "", errors.New("invalid domain")
	}
	return domain, nil
}

// READY state -> waiting for MAIL.
func (s *Session) readyHandler(cmd string, arg string) {
	switch cmd {
	case "MAIL":
		s.mailFromHandler(arg)
	case "HELO", "EHLO":
		// Reset session.
		s.logger.Debug().Msg("Resetting session state on repeated greeting")
		s.reset()
		s.send("250 Session reset")
	default:
		s.ooSeq(cmd)
	}
}

// Parses the `MAIL FROM` argument and applies the sender policy.
func (s *Session) mailFromHandler(arg string) {
	// Capture group 1: from address. 2: optional params.
	m := fromRegex.FindStringSubmatch(arg)
	if m == nil {
		s.protocolError("501 Was expecting MAIL arg syntax of FROM:<address>")
		s.logger.Warn().Msgf("Bad MAIL argument: %q", arg)
		return
	}
	// Empty for the null reverse-path, MAIL FROM:<>.
	from := m[1]

	// Parse ESMTP parameters.
	if m[2] != "" {
		// The client may announce BODY=8BITMIME here, but DATA is read as
		// bytes either way, so only SIZE needs attention.
		args, ok := s.parseArgs(m[2])
		if !ok {
			s.protocolError("501 Unable to parse MAIL ESMTP parameters")
			s.logger.Warn().Msgf("Bad MAIL argument: %q", arg)
			return
		}
		if args["SIZE"] != "" {
			size, err := strconv.ParseInt(args["SIZE"], 10, 32)
			if err != nil {
				s.protocolError("501 Unable to parse SIZE as an integer")
				s.logger.Warn().Msgf("Unable to parse SIZE %q as an integer", args["SIZE"])
				return
			}
			if int(size) > s.config.MaxMessageBytes {
				s.send("552 Max message size exceeded")
				s.logger.Warn().Msgf("Client wanted to send oversized message: %v", args["SIZE"])
				return
			}
		}
	}

	origin, err := s.addrPolicy.NewOrigin(from)
	if err != nil {
		s.protocolError("501 Bad sender address syntax")
		s.logger.Warn().Str("from", from).Err(err).Msg("Bad address as MAIL arg")
		return
	}

	// Add from to extSession for inspection.
	extSession := s.extSession()
	if !origin.Null {
		addrCopy := origin.Address
		extSession.From = &addrCopy
	}

	// Process through extensions.
	extAction := event.ActionDefer
	extResult := s.extHost.Events.BeforeMailFromAccepted.Emit(extSession)
	if extResult != nil {
		extAction = extResult.Action
	}
	if extAction == event.ActionDeny {
		s.send(fmt.Sprintf("%03d %s", extResult.ErrorCode, extResult.ErrorMsg))
		s.logger.Warn().Msgf("Extension denied mail from <%v>", from)
		return
	}

	// Ignore ShouldAccept if extensions explicitly allowed this sender.
	if extAction == event.ActionDefer && !origin.ShouldAccept() {
		s.send("530 Sender domain not accepted")
		s.logger.Warn().Str("domain", origin.Domain).Msg("Rejecting banned sender domain")
		return
	}

	// Ok to transition to MAIL state; a fresh MAIL voids prior recipients.
	s.from = origin
	s.recipients = nil
	s.logger.Info().Msgf("Mail from: %v", from)
	if origin.Null {
		s.send("250 Roger, accepting mail from null sender")
	} else {
		s.send(fmt.Sprintf("250 Roger, accepting mail from <%v>", from))
	}
	s.enterState(MAIL)
}

// MAIL state -> waiting for RCPTs followed by DATA.
func (s *Session) mailHandler(cmd string, arg string) {
	switch cmd {
	case "RCPT":
		s.rcptToHandler(arg)
	case "DATA":
		if arg != "" {
			s.protocolError("501 DATA command should not have any arguments")
			s.logger.Warn().Msgf("Got unexpected args on DATA: %q", arg)
			return
		}
		if len(s.recipients) == 0 {
			// Stay in MAIL state, client may try more RCPTs.
			s.send("554 No valid recipients for this message")
			s.logger.Warn().Msg("Got DATA before any valid RCPT")
			return
		}
		s.enterState(DATA)
	case "HELO", "EHLO":
		// Reset session.
		s.logger.Debug().Msg("Resetting session state on repeated greeting")
		s.reset()
		s.send("250 Session reset")
	default:
		s.ooSeq(cmd)
	}
}

// Parses the `RCPT TO` argument and applies the recipient policy.
func (s *Session) rcptToHandler(arg string) {
	if (len(arg) < 4) || (strings.ToUpper(arg[0:3]) != "TO:") {
		s.protocolError("501 Was expecting RCPT arg syntax of TO:<address>")
		s.logger.Warn().Msgf("Bad RCPT argument: %q", arg)
		return
	}
	addr := strings.Trim(arg[3:], "<> ")
	recip, err := s.addrPolicy.NewRecipient(addr)
	if err != nil {
		s.protocolError("501 Bad recipient address syntax")
		s.logger.Warn().Str("to", addr).Err(err).Msg("Bad address as RCPT arg")
		return
	}
	if len(s.recipients) >= s.config.MaxRecipients {
		s.logger.Warn().Msgf("Limit of %v recipients exceeded", s.config.MaxRecipients)
		s.send(fmt.Sprintf("452 Limit of %v recipients exceeded", s.config.MaxRecipients))
		return
	}

	// Append new address to extSession for inspection.
	addrCopy := recip.Address
	extSession := s.extSession()
	extSession.To = append(extSession.To, &addrCopy)

	// Process through extensions.
	extAction := event.ActionDefer
	extResult := s.extHost.Events.BeforeRcptToAccepted.Emit(extSession)
	if extResult != nil {
		extAction = extResult.Action
	}
	if extAction == event.ActionDeny {
		s.send(fmt.Sprintf("%03d %s", extResult.ErrorCode, extResult.ErrorMsg))
		s.logger.Warn().Msgf("Extension denied mail to <%v>", addr)
		return
	}

	// Ignore ShouldAccept if extensions explicitly allowed this recipient.
	if extAction == event.ActionDefer && !recip.ShouldAccept() {
		s.logger.Warn().Str("to", addr).Msg("Rejecting recipient by policy")
		s.send("550 Relay not permitted")
		return
	}

	s.recipients = append(s.recipients, recip)
	s.logger.Debug().Str("to", addr).Msg("Recipient added")
	s.send(fmt.Sprintf("250 I'll make sure <%v> gets this", addr))
}

// DATA state -> reading payload lines until the terminating dot.
func (s *Session) dataHandler() {
	s.send("354 Start mail input; end with <CRLF>.<CRLF>")
	data, err := s.readDataBlock()
	if err != nil {
		if errors.Is(err, errMaxMessageSize) {
			// The 552 reply was already sent; transaction is void.
			s.logger.Warn().Msg("Max message size exceeded while in DATA")
			s.reset()
			return
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			s.send("221 Idle timeout, bye bye")
		}
		s.logger.Warn().Msgf("Error: %v while reading", err)
		s.enterState(QUIT)
		return
	}

	// Deliver one stored copy per accepted recipient.
	ids, err := s.manager.Deliver(s.from, s.recipients, data)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to store message")
		s.send("451 Failed to store message")
		s.reset()
		return
	}
	expReceivedTotal.Add(int64(len(ids)))

	s.send("250 Message accepted for delivery")
	s.logger.Info().Int("bytes", len(data)).Int("recipients", len(ids)).
		Msg("Message stored")
	s.reset()
}

func (s *Session) enterState(state State) {
	s.state = state
	s.logger.Debug().Msgf("Entering state %v", state)
}

func (s *Session) greet() {
	s.send(fmt.Sprintf("220 %v DriftMail ESMTP ready", s.config.Domain))
}

// nextDeadline calculates the next read or write deadline: the per command
// timeout, capped by the whole session wall clock limit.
func (s *Session) nextDeadline() time.Time {
	d := time.Now().Add(s.config.Timeout)
	if wall := s.start.Add(s.config.SessionTimeout); wall.Before(d) {
		return wall
	}
	return d
}

// protocolError replies to a protocol violation, force closing the session
// once the client has made too many of them.
func (s *Session) protocolError(reply string) {
	s.errors++
	if s.errors > maxProtocolErrors {
		s.send("421 Too many errors, closing connection")
		s.logger.Warn().Int("errors", s.errors).Msg("Protocol error threshold exceeded")
		s.enterState(QUIT)
		return
	}
	s.send(reply)
}

// Send requested message, store errors in Session.sendError.
func (s *Session) send(msg string) {
	if err := s.conn.SetWriteDeadline(s.nextDeadline()); err != nil {
		s.sendError = err
		return
	}
	if err := s.text.PrintfLine("%s", msg); err != nil {
		s.sendError = err
		s.logger.Warn().Msgf("Failed to send: %q", msg)
		return
	}
	if s.debug {
		fmt.Printf("%04d > %v\n", s.id, msg)
	}
}

// readDataBlock reads the DATA payload a line at a time, undoing dot
// stuffing, until the terminating dot line. The 552 reply goes out the
// moment the size limit is crossed; the rest of the payload is read and
// discarded so the connection stays usable.
func (s *Session) readDataBlock() ([]byte, error) {
	var buf bytes.Buffer
	tooBig := false
	for {
		if err := s.conn.SetReadDeadline(s.nextDeadline()); err != nil {
			return nil, err
		}
		line, err := s.text.ReadLineBytes()
		if err != nil {
			return nil, err
		}
		if s.debug {
			fmt.Printf("%04d   %s\n", s.id, line)
		}
		if len(line) == 1 && line[0] == '.' {
			// Mail data complete.
			if tooBig {
				return nil, errMaxMessageSize
			}
			return buf.Bytes(), nil
		}
		if tooBig {
			continue
		}
		// SMTP RFC says remove leading periods from input.
		if len(line) > 0 && line[0] == '.' {
			line = line[1:]
		}
		if buf.Len()+len(line)+2 > s.config.MaxMessageBytes {
			s.send("552 Maximum message size exceeded")
			buf.Reset()
			tooBig = true
			continue
		}
		buf.Write(line)
		buf.WriteString("\r\n")
	}
}

// readLine reads a line of input respecting deadlines.
func (s *Session) readLine() (line string, err error) {
	if err = s.conn.SetReadDeadline(s.nextDeadline()); err != nil {
		return "", err
	}
	line, err = s.text.ReadLine()
	if err != nil {
		return "", err
	}
	if s.debug {
		fmt.Printf("%04d   %v\n", s.id, line)
	}
	return line, nil
}

func (s *Session) parseCmd(line string) (cmd string, arg string, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	s.logger.Debug().Msgf("Line received: %v", line)

	// Find length of command or entire line.
	hasArg := true
	l := strings.IndexByte(line, ' ')
	if l == -1 {
		hasArg = false
		l = len(line)
	}

	switch {
	case l == 0:
		return "", "", true
	case l < 4:
		s.logger.Warn().Msgf("Command too short: %q", line)
		return "", "", false
	}

	if hasArg {
		return strings.ToUpper(line[0:l]), strings.Trim(line[l+1:], " "), true
	}

	return strings.ToUpper(line), "", true
}

// parseArgs takes the arguments proceeding a command and files them into a
// map[string]string after uppercasing each key.  Sample arg string:
//
//	" BODY=8BITMIME SIZE=1024"
//
// The leading space is mandatory.
func (s *Session) parseArgs(arg string) (args map[string]string, ok bool) {
	args = make(map[string]string)
	pm := paramRegex.FindAllStringSubmatch(arg, -1)
	if pm == nil {
		s.logger.Warn().Msgf("Failed to parse arg string: %q", arg)
		return nil, false
	}
	for _, m := range pm {
		args[strings.ToUpper(m[1])] = m[2]
	}
	s.logger.Debug().Msgf("ESMTP params: %v", args)
	return args, true
}

func (s *Session) reset() {
	s.enterState(READY)
	s.from = nil
	s.recipients = nil
}

func (s *Session) ooSeq(cmd string) {
	s.protocolError(fmt.Sprintf("503 Command %v is out of sequence", cmd))
	s.logger.Warn().Msgf("Wasn't expecting %v here", cmd)
}

// extSession builds an SMTPSession for extensions to inspect. From stays nil
// for the null sender.
func (s *Session) extSession() *event.SMTPSession {
	var from *mail.Address
	if s.from != nil && !s.from.Null {
		addr := s.from.Address
		from = &addr
	}
	to := make([]*mail.Address, 0, len(s.recipients))
	for _, recip := range s.recipients {
		addr := recip.Address
		to = append(to, &addr)
	}

	return &event.SMTPSession{
		From:       from,
		To:         to,
		RemoteAddr: s.remoteHost,
	}
}
