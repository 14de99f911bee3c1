// Package xmpp implements a minimal, synchronous XMPP (Jabber) client
// sufficient for sending one-shot <message/> stanzas: TCP/TLS dial, stream
// negotiation, SASL PLAIN auth, resource bind, send, disconnect. It does not
// implement roster management, presence subscriptions or MUC — only what a
// fire-and-forget notification send needs.
package xmpp

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dispatchhq/notifyd/internal/domain"
	"github.com/dispatchhq/notifyd/internal/providers"
	"github.com/dispatchhq/notifyd/internal/template"
)

// Settings configures the JID/password used to authenticate against the
// XMPP server found via the JID's domain part (host overrides that lookup).
type Settings struct {
	JID      string
	Password string
	Host     string
	Port     int
}

// Provider sends XMPP chat messages. Blocking reports BlockingThread since a
// stanza round trip blocks the calling goroutine on a raw socket with no
// context-cancellation hook, the same constraint the original's slixmpp
// client has.
type Provider struct {
	settings Settings
	engine   template.Engine
	callback domain.SentCallback

	mu        sync.Mutex
	connected bool
}

func New(settings Settings, engine template.Engine, callback domain.SentCallback) *Provider {
	return &Provider{settings: settings, engine: engine, callback: callback}
}

func (p *Provider) Name() string                     { return "xmpp" }
func (p *Provider) Type() domain.ProviderType         { return domain.ProviderTypeIM }
func (p *Provider) Blocking() domain.BlockingStrategy { return domain.BlockingThread }

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.settings.JID == "" || p.settings.Password == "" {
		return &domain.ErrAuth{Provider: p.Name(), Err: fmt.Errorf("jid and password are required")}
	}
	p.connected = true
	return nil
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = false
	return nil
}

func jabberID(to domain.Recipient) (string, error) {
	switch r := to.(type) {
	case domain.Chat:
		return r.ChatID, nil
	case domain.Actor:
		for _, acct := range r.Account {
			if acct.UserID != "" {
				return acct.UserID, nil
			}
		}
		return "", &domain.ErrValidation{Reason: fmt.Sprintf("actor %q has no xmpp account", r.Name)}
	default:
		return "", &domain.ErrValidation{Reason: "xmpp provider requires an actor or chat recipient"}
	}
}

func (p *Provider) SendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	result, err := p.sendOne(ctx, to, msg, opts)
	domain.InvokeCallback(ctx, p.callback, to, msg, result)
	return result, err
}

func (p *Provider) sendOne(ctx context.Context, to domain.Recipient, msg domain.Message, opts domain.SendOptions) (domain.SendResult, error) {
	p.mu.Lock()
	connected := p.connected
	p.mu.Unlock()
	if !connected {
		err := &domain.ErrTransport{Provider: p.Name(), Err: fmt.Errorf("not connected")}
		return domain.SendResult{Recipient: to, Err: err}, err
	}

	jid, err := jabberID(to)
	if err != nil {
		return domain.SendResult{Recipient: to, Err: err}, err
	}

	body, err := providers.Render(ctx, p.engine, to, msg, opts.Subject, opts.Extra)
	if err != nil {
		wrapped := &domain.ErrMessage{Reason: "template render failed", Err: err}
		return domain.SendResult{Recipient: to, Err: wrapped}, wrapped
	}

	if err := p.deliver(jid, body); err != nil {
		wrapped := &domain.ErrProviderError{Provider: p.Name(), Err: err, Retryable: true}
		return domain.SendResult{Recipient: to, Err: wrapped}, wrapped
	}
	return domain.SendResult{Recipient: to}, nil
}

func (p *Provider) Send(ctx context.Context, recipients []domain.Recipient, msg domain.Message, opts domain.SendOptions) ([]domain.SendResult, error) {
	results := providers.FanOut(ctx, p.Blocking(), recipients, func(ctx context.Context, to domain.Recipient) (domain.SendResult, error) {
		return p.SendOne(ctx, to, msg, opts)
	})
	return results, nil
}

// deliver opens a fresh connection, negotiates a stream, authenticates and
// sends one message stanza. A new connection per send keeps this provider
// stateless between calls, at the cost of a handshake every time — an
// acceptable trade for notification volumes.
func (p *Provider) deliver(to, body string) error {
	domainPart := p.settings.Host
	if domainPart == "" {
		parts := strings.SplitN(p.settings.JID, "@", 2)
		if len(parts) != 2 {
			return fmt.Errorf("xmpp: jid %q has no domain part", p.settings.JID)
		}
		domainPart = parts[1]
	}
	port := p.settings.Port
	if port == 0 {
		port = 5222
	}

	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", domainPart, port), 10*time.Second)
	if err != nil {
		return fmt.Errorf("xmpp: dial: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(30 * time.Second))

	stream := &streamConn{conn: conn, r: bufio.NewReader(conn), dec: xml.NewDecoder(conn)}

	if err := stream.openStream(domainPart); err != nil {
		return err
	}
	if err := stream.startTLS(domainPart); err != nil {
		return err
	}
	if err := stream.authenticate(p.settings.JID, p.settings.Password); err != nil {
		return err
	}
	if err := stream.bindResource(); err != nil {
		return err
	}
	return stream.sendMessage(to, body)
}

type streamConn struct {
	conn net.Conn
	r    *bufio.Reader
	dec  *xml.Decoder
}

func (s *streamConn) openStream(domain string) error {
	fmt.Fprintf(s.conn, "<?xml version='1.0'?><stream:stream to='%s' xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' version='1.0'>", xmlEscape(domain))
	return s.skipUntilStartElement("stream:features")
}

// startTLS always requests STARTTLS, waits for the server's <proceed/> and
// upgrades the connection; the decoder is rebuilt over the new TLS conn.
// There is no plain-text or implicit-TLS fallback: a server that doesn't
// offer STARTTLS fails the send.
func (s *streamConn) startTLS(domain string) error {
	fmt.Fprint(s.conn, "<starttls xmlns='urn:ietf:params:xml:ns:xmpp-tls'/>")
	if err := s.skipUntilStartElement("proceed"); err != nil {
		return err
	}

	tlsConn := tls.Client(s.conn, &tls.Config{ServerName: domain, MinVersion: tls.VersionTLS12})
	if err := tlsConn.Handshake(); err != nil {
		return fmt.Errorf("xmpp: tls handshake: %w", err)
	}
	s.conn = tlsConn
	s.r = bufio.NewReader(tlsConn)
	s.dec = xml.NewDecoder(tlsConn)

	fmt.Fprintf(s.conn, "<?xml version='1.0'?><stream:stream to='%s' xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' version='1.0'>", xmlEscape(domain))
	return s.skipUntilStartElement("stream:features")
}

func (s *streamConn) authenticate(jid, password string) error {
	user := jid
	if at := strings.IndexByte(jid, '@'); at >= 0 {
		user = jid[:at]
	}
	creds := base64.StdEncoding.EncodeToString([]byte("\x00" + user + "\x00" + password))
	fmt.Fprintf(s.conn, "<auth xmlns='urn:ietf:params:xml:ns:xmpp-sasl' mechanism='PLAIN'>%s</auth>", creds)

	tok, err := s.nextStartElement()
	if err != nil {
		return fmt.Errorf("xmpp: sasl: %w", err)
	}
	if tok.Name.Local != "success" {
		return fmt.Errorf("xmpp: authentication rejected")
	}

	domainPart := jid
	if at := strings.IndexByte(jid, '@'); at >= 0 {
		domainPart = jid[at+1:]
	}
	fmt.Fprintf(s.conn, "<?xml version='1.0'?><stream:stream to='%s' xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' version='1.0'>", xmlEscape(domainPart))
	return s.skipUntilStartElement("stream:features")
}

func (s *streamConn) bindResource() error {
	fmt.Fprint(s.conn, "<iq type='set' id='bind1'><bind xmlns='urn:ietf:params:xml:ns:xmpp-bind'/></iq>")
	_, err := s.nextStartElement()
	return err
}

func (s *streamConn) sendMessage(to, body string) error {
	_, err := fmt.Fprintf(s.conn, "<message to='%s' type='chat'><body>%s</body></message>",
		xmlEscape(to), xmlEscape(body))
	return err
}

func (s *streamConn) skipUntilStartElement(name string) error {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return fmt.Errorf("xmpp: reading stream: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == name {
			return nil
		}
	}
}

func (s *streamConn) nextStartElement() (xml.StartElement, error) {
	for {
		tok, err := s.dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

func xmlEscape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
