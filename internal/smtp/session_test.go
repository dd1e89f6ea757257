package smtp

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/smtp2tg/smtp2tg/internal/message"
	"github.com/smtp2tg/smtp2tg/internal/provider"
)

// mockProvider implements provider.Provider for testing.
type mockProvider struct {
	lastMsg *message.Message
	sendErr error
}

func (m *mockProvider) Send(_ context.Context, msg *message.Message) error {
	m.lastMsg = msg
	return m.sendErr
}

func (m *mockProvider) Name() string {
	return "mock"
}

// reportingProvider is a mockProvider that also records ingest diagnostics.
type reportingProvider struct {
	mockProvider
	reports []string
}

func (r *reportingProvider) ReportFailure(_ context.Context, text string) {
	r.reports = append(r.reports, text)
}

// allowPolicy accepts only the listed addresses; everything else is denied.
type allowPolicy map[string]bool

func (p allowPolicy) Accept(addr string) bool { return p[addr] }

// connPair creates a connected pair of net.Conn for testing SMTP sessions.
func connPair(t *testing.T) (client net.Conn, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	done := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		done <- conn
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	server = <-done
	return client, server
}

// startSession runs a session over a fresh connection pair and returns the
// client side with a buffered reader positioned past the greeting.
func startSession(t *testing.T, prov provider.Provider, auth *Authenticator, policy RecipientPolicy, maxSize int64) (net.Conn, *bufio.Reader) {
	t.Helper()

	client, server := connPair(t)
	t.Cleanup(func() { client.Close() })

	sess := NewSession(server, auth, prov, policy, "mail.test.com", maxSize, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	go sess.Handle(ctx)

	reader := bufio.NewReader(client)
	readLine(t, reader) // greeting
	return client, reader
}

// readLine reads a line from a buffered reader.
func readLine(t *testing.T, reader *bufio.Reader) string {
	t.Helper()
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read line: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

// sendCmd sends a command to the SMTP session.
func sendCmd(t *testing.T, conn net.Conn, cmd string) {
	t.Helper()
	_, err := conn.Write([]byte(cmd + "\r\n"))
	if err != nil {
		t.Fatalf("failed to write command: %v", err)
	}
}

// ehlo greets the session and drains the capability lines.
func ehlo(t *testing.T, client net.Conn, reader *bufio.Reader) {
	t.Helper()
	sendCmd(t, client, "EHLO client.test.com")
	for {
		line := readLine(t, reader)
		if !strings.HasPrefix(line, "250-") {
			break
		}
	}
}

func TestSession_Greeting(t *testing.T) {
	t.Parallel()

	client, server := connPair(t)
	defer client.Close()

	sess := NewSession(server, NewAuthenticator("", ""), &mockProvider{}, nil, "mail.test.com", 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go sess.Handle(ctx)

	reader := bufio.NewReader(client)
	greeting := readLine(t, reader)

	if !strings.HasPrefix(greeting, "220 ") {
		t.Errorf("greeting: got %q, want prefix '220 '", greeting)
	}
	if !strings.Contains(greeting, "mail.test.com") {
		t.Errorf("greeting should contain hostname, got %q", greeting)
	}
}

func TestSession_EHLO(t *testing.T) {
	t.Parallel()

	client, server := connPair(t)
	defer client.Close()

	sess := NewSession(server, NewAuthenticator("user", "pass"), &mockProvider{}, nil, "mail.test.com", 0, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go sess.Handle(ctx)

	reader := bufio.NewReader(client)
	readLine(t, reader) // Skip greeting

	sendCmd(t, client, "EHLO client.test.com")

	var ehloLines []string
	for {
		line := readLine(t, reader)
		ehloLines = append(ehloLines, line)
		if !strings.HasPrefix(line, "250-") {
			break
		}
	}

	foundAuth := false
	foundSize := false
	for _, line := range ehloLines {
		if strings.Contains(line, "AUTH PLAIN LOGIN") {
			foundAuth = true
		}
		if strings.Contains(line, "SIZE") {
			foundSize = true
		}
	}

	if !foundAuth {
		t.Error("EHLO response missing AUTH capability")
	}
	if !foundSize {
		t.Error("EHLO response missing SIZE capability")
	}
}

func TestSession_HELO(t *testing.T) {
	t.Parallel()

	client, reader := startSession(t, &mockProvider{}, NewAuthenticator("", ""), nil, 0)

	sendCmd(t, client, "HELO client.test.com")
	response := readLine(t, reader)
	if !strings.HasPrefix(response, "250 ") {
		t.Errorf("HELO response: got %q, want prefix '250 '", response)
	}
}

func TestSession_QUIT(t *testing.T) {
	t.Parallel()

	client, reader := startSession(t, &mockProvider{}, NewAuthenticator("", ""), nil, 0)

	sendCmd(t, client, "QUIT")
	response := readLine(t, reader)

	if !strings.HasPrefix(response, "221 ") {
		t.Errorf("QUIT response: got %q, want prefix '221 '", response)
	}
}

func TestSession_NOOP(t *testing.T) {
	t.Parallel()

	client, reader := startSession(t, &mockProvider{}, NewAuthenticator("", ""), nil, 0)

	sendCmd(t, client, "NOOP")
	response := readLine(t, reader)

	if !strings.HasPrefix(response, "250 ") {
		t.Errorf("NOOP response: got %q, want prefix '250 '", response)
	}
}

func TestSession_MailTransaction(t *testing.T) {
	t.Parallel()

	prov := &mockProvider{}
	client, reader := startSession(t, prov, NewAuthenticator("", ""), nil, 0)
	ehlo(t, client, reader)

	sendCmd(t, client, "MAIL FROM:<sender@example.com>")
	resp := readLine(t, reader)
	if !strings.HasPrefix(resp, "250 ") {
		t.Errorf("MAIL FROM response: got %q, want prefix '250 '", resp)
	}

	sendCmd(t, client, "RCPT TO:<recipient@example.com>")
	resp = readLine(t, reader)
	if !strings.HasPrefix(resp, "250 ") {
		t.Errorf("RCPT TO response: got %q, want prefix '250 '", resp)
	}

	sendCmd(t, client, "DATA")
	resp = readLine(t, reader)
	if !strings.HasPrefix(resp, "354 ") {
		t.Errorf("DATA response: got %q, want prefix '354 '", resp)
	}

	msg := strings.Join([]string{
		"From: header-sender@example.com",
		"To: header-recipient@example.com",
		"Subject: Test Email",
		"Content-Type: text/plain",
		"",
		"Hello, this is a test email.",
		".",
	}, "\r\n")
	if _, err := client.Write([]byte(msg + "\r\n")); err != nil {
		t.Fatalf("failed to write DATA: %v", err)
	}

	resp = readLine(t, reader)
	if !strings.HasPrefix(resp, "250 ") {
		t.Errorf("DATA completion response: got %q, want prefix '250 '", resp)
	}

	if prov.lastMsg == nil {
		t.Fatal("provider did not receive message")
	}
	if prov.lastMsg.Subject != "Test Email" {
		t.Errorf("Subject: got %q, want %q", prov.lastMsg.Subject, "Test Email")
	}
	// Envelope addresses override the header-level ones.
	if prov.lastMsg.EnvelopeFrom != "sender@example.com" {
		t.Errorf("EnvelopeFrom: got %q, want the MAIL FROM address", prov.lastMsg.EnvelopeFrom)
	}
	if len(prov.lastMsg.EnvelopeTo) != 1 || prov.lastMsg.EnvelopeTo[0] != "recipient@example.com" {
		t.Errorf("EnvelopeTo: got %v, want the RCPT TO address", prov.lastMsg.EnvelopeTo)
	}
}

func TestSession_NullSenderAccepted(t *testing.T) {
	t.Parallel()

	client, reader := startSession(t, &mockProvider{}, NewAuthenticator("", ""), nil, 0)
	ehlo(t, client, reader)

	// Bounce messages use the null reverse-path.
	sendCmd(t, client, "MAIL FROM:<>")
	resp := readLine(t, reader)
	if !strings.HasPrefix(resp, "250 ") {
		t.Errorf("MAIL FROM:<> response: got %q, want prefix '250 '", resp)
	}
}

func TestSession_RecipientDenied(t *testing.T) {
	t.Parallel()

	policy := allowPolicy{"alice@example.com": true}
	client, reader := startSession(t, &mockProvider{}, NewAuthenticator("", ""), policy, 0)
	ehlo(t, client, reader)

	sendCmd(t, client, "MAIL FROM:<sender@example.com>")
	readLine(t, reader)

	sendCmd(t, client, "RCPT TO:<stranger@example.com>")
	resp := readLine(t, reader)
	if !strings.HasPrefix(resp, "550 ") {
		t.Errorf("denied RCPT TO: got %q, want prefix '550 '", resp)
	}

	// A configured recipient is still deliverable on the same transaction.
	sendCmd(t, client, "RCPT TO:<alice@example.com>")
	resp = readLine(t, reader)
	if !strings.HasPrefix(resp, "250 ") {
		t.Errorf("allowed RCPT TO: got %q, want prefix '250 '", resp)
	}
}

func TestSession_ProviderFailureIsTemporary(t *testing.T) {
	t.Parallel()

	prov := &mockProvider{sendErr: errors.New("all deliveries failed")}
	client, reader := startSession(t, prov, NewAuthenticator("", ""), nil, 0)
	ehlo(t, client, reader)

	sendCmd(t, client, "MAIL FROM:<sender@example.com>")
	readLine(t, reader)
	sendCmd(t, client, "RCPT TO:<recipient@example.com>")
	readLine(t, reader)
	sendCmd(t, client, "DATA")
	readLine(t, reader)

	msg := "Subject: x\r\n\r\nbody\r\n.\r\n"
	if _, err := client.Write([]byte(msg)); err != nil {
		t.Fatalf("failed to write DATA: %v", err)
	}

	resp := readLine(t, reader)
	if !strings.HasPrefix(resp, "451 ") {
		t.Errorf("failed delivery: got %q, want prefix '451 '", resp)
	}

	// The session survives: a new transaction can start right away.
	sendCmd(t, client, "MAIL FROM:<sender@example.com>")
	resp = readLine(t, reader)
	if !strings.HasPrefix(resp, "250 ") {
		t.Errorf("MAIL FROM after failure: got %q, want prefix '250 '", resp)
	}
}

func TestSession_UnparseableMessageReported(t *testing.T) {
	t.Parallel()

	prov := &reportingProvider{}
	client, reader := startSession(t, prov, NewAuthenticator("", ""), nil, 0)
	ehlo(t, client, reader)

	sendCmd(t, client, "MAIL FROM:<sender@example.com>")
	readLine(t, reader)
	sendCmd(t, client, "RCPT TO:<recipient@example.com>")
	readLine(t, reader)
	sendCmd(t, client, "DATA")
	readLine(t, reader)

	// A header line without a colon is not a valid RFC 5322 message.
	if _, err := client.Write([]byte("this is not a header\r\n\r\nbody\r\n.\r\n")); err != nil {
		t.Fatalf("failed to write DATA: %v", err)
	}

	resp := readLine(t, reader)
	if !strings.HasPrefix(resp, "451 ") {
		t.Fatalf("unparseable message: got %q, want prefix '451 '", resp)
	}
	if prov.lastMsg != nil {
		t.Error("unparseable message must not reach Send")
	}
	if len(prov.reports) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(prov.reports))
	}
	if !strings.Contains(prov.reports[0], "parse") {
		t.Errorf("diagnostic text: got %q", prov.reports[0])
	}
}

func TestSession_OversizedMessage(t *testing.T) {
	t.Parallel()

	prov := &mockProvider{}
	client, reader := startSession(t, prov, NewAuthenticator("", ""), nil, 64)
	ehlo(t, client, reader)

	sendCmd(t, client, "MAIL FROM:<sender@example.com>")
	readLine(t, reader)
	sendCmd(t, client, "RCPT TO:<recipient@example.com>")
	readLine(t, reader)
	sendCmd(t, client, "DATA")
	readLine(t, reader)

	big := strings.Repeat("x", 200)
	msg := "Subject: big\r\n\r\n" + big + "\r\n" + big + "\r\n.\r\n"
	if _, err := client.Write([]byte(msg)); err != nil {
		t.Fatalf("failed to write DATA: %v", err)
	}

	resp := readLine(t, reader)
	if !strings.HasPrefix(resp, "552 ") {
		t.Errorf("oversized message: got %q, want prefix '552 '", resp)
	}
	if prov.lastMsg != nil {
		t.Error("oversized message must not reach the provider")
	}

	// The terminator was consumed, so the session stays in sync.
	sendCmd(t, client, "NOOP")
	resp = readLine(t, reader)
	if !strings.HasPrefix(resp, "250 ") {
		t.Errorf("NOOP after oversized message: got %q, want prefix '250 '", resp)
	}
}

func TestSession_RSET(t *testing.T) {
	t.Parallel()

	client, reader := startSession(t, &mockProvider{}, NewAuthenticator("", ""), nil, 0)
	ehlo(t, client, reader)

	sendCmd(t, client, "MAIL FROM:<sender@example.com>")
	readLine(t, reader)

	sendCmd(t, client, "RSET")
	resp := readLine(t, reader)
	if !strings.HasPrefix(resp, "250 ") {
		t.Errorf("RSET response: got %q, want prefix '250 '", resp)
	}

	// State is reset, RCPT TO now needs a new MAIL FROM.
	sendCmd(t, client, "RCPT TO:<recipient@example.com>")
	resp = readLine(t, reader)
	if !strings.HasPrefix(resp, "503 ") {
		t.Errorf("RCPT TO after RSET: got %q, want prefix '503 '", resp)
	}
}

func TestSession_StateOrderEnforcement(t *testing.T) {
	t.Parallel()

	client, reader := startSession(t, &mockProvider{}, NewAuthenticator("user", "pass"), nil, 0)

	// MAIL FROM before EHLO should fail
	sendCmd(t, client, "MAIL FROM:<sender@example.com>")
	resp := readLine(t, reader)
	if !strings.HasPrefix(resp, "503 ") {
		t.Errorf("MAIL FROM before EHLO: got %q, want prefix '503 '", resp)
	}

	ehlo(t, client, reader)

	// MAIL FROM without AUTH should fail when auth is enabled
	sendCmd(t, client, "MAIL FROM:<sender@example.com>")
	resp = readLine(t, reader)
	if !strings.HasPrefix(resp, "530 ") {
		t.Errorf("MAIL FROM without AUTH: got %q, want prefix '530 '", resp)
	}

	// RCPT TO before MAIL FROM should fail
	sendCmd(t, client, "RCPT TO:<recipient@example.com>")
	resp = readLine(t, reader)
	if !strings.HasPrefix(resp, "503 ") {
		t.Errorf("RCPT TO before MAIL FROM: got %q, want prefix '503 '", resp)
	}

	// DATA before RCPT TO should fail
	sendCmd(t, client, "DATA")
	resp = readLine(t, reader)
	if !strings.HasPrefix(resp, "503 ") {
		t.Errorf("DATA before RCPT TO: got %q, want prefix '503 '", resp)
	}
}

func TestSession_UnknownCommand(t *testing.T) {
	t.Parallel()

	client, reader := startSession(t, &mockProvider{}, NewAuthenticator("", ""), nil, 0)

	sendCmd(t, client, "INVALID")
	resp := readLine(t, reader)
	if !strings.HasPrefix(resp, "500 ") {
		t.Errorf("unknown command response: got %q, want prefix '500 '", resp)
	}
}

func TestSession_EHLO_MissingHostname(t *testing.T) {
	t.Parallel()

	client, reader := startSession(t, &mockProvider{}, NewAuthenticator("", ""), nil, 0)

	sendCmd(t, client, "EHLO")
	resp := readLine(t, reader)
	if !strings.HasPrefix(resp, "501 ") {
		t.Errorf("EHLO without hostname: got %q, want prefix '501 '", resp)
	}
}

func TestParseCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		wantCmd string
		wantArg string
	}{
		{"EHLO client.test.com", "EHLO", "client.test.com"},
		{"MAIL FROM:<user@example.com>", "MAIL", "FROM:<user@example.com>"},
		{"RCPT TO:<user@example.com>", "RCPT", "TO:<user@example.com>"},
		{"DATA", "DATA", ""},
		{"QUIT", "QUIT", ""},
		{"ehlo client.test.com", "EHLO", "client.test.com"},
		{"AUTH PLAIN dGVzdA==", "AUTH", "PLAIN dGVzdA=="},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			cmd, arg := parseCommand(tt.input)
			if cmd != tt.wantCmd {
				t.Errorf("command: got %q, want %q", cmd, tt.wantCmd)
			}
			if arg != tt.wantArg {
				t.Errorf("arg: got %q, want %q", arg, tt.wantArg)
			}
		})
	}
}

func TestExtractAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"<user@example.com>", "user@example.com"},
		{"  <user@example.com>  ", "user@example.com"},
		{"user@example.com", "user@example.com"},
		{"<>", ""},
		{"", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got := extractAddress(tt.input)
			if got != tt.want {
				t.Errorf("extractAddress(%q): got %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSession_AuthBeforeEHLO(t *testing.T) {
	t.Parallel()

	client, reader := startSession(t, &mockProvider{}, NewAuthenticator("user", "pass"), nil, 0)

	sendCmd(t, client, "AUTH PLAIN dGVzdA==")
	resp := readLine(t, reader)
	if !strings.HasPrefix(resp, "503 ") {
		t.Errorf("AUTH before EHLO: got %q, want prefix '503 '", resp)
	}
}
