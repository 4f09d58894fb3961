package session

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Provider supplies credentials for one collection run
type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// ProviderFunc adapts a function to Provider
type ProviderFunc func(ctx context.Context) (Credentials, error)

func (f ProviderFunc) Credentials(ctx context.Context) (Credentials, error) {
	return f(ctx)
}

// Environment variable names read by EnvProvider
const (
	EnvEmail      = "ZENDESK_EMAIL"
	EnvAPIToken   = "ZENDESK_API_TOKEN"
	EnvOAuthToken = "ZENDESK_OAUTH_TOKEN"
)

// EnvProvider reads credentials from the environment at call time
type EnvProvider struct {
	// Email overrides ZENDESK_EMAIL when set
	Email string
}

func (p EnvProvider) Credentials(ctx context.Context) (Credentials, error) {
	email := p.Email
	if email == "" {
		email = os.Getenv(EnvEmail)
	}
	creds := Credentials{Email: email}
	if v := os.Getenv(EnvOAuthToken); v != "" {
		creds.OAuthToken = NewSecret(v)
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		creds.Token = NewSecret(v)
	}
	if err := creds.Validate(); err != nil {
		creds.Destroy()
		return Credentials{}, err
	}
	return creds, nil
}

// PromptProvider falls back to an interactive prompt for whatever the
// environment does not supply. The token is read without echo when In is
// a terminal.
type PromptProvider struct {
	Env EnvProvider
	In  *os.File
	Out io.Writer

	// readSecret is replaced in tests
	readSecret func(fd int) ([]byte, error)
	reader     *bufio.Reader
}

func (p *PromptProvider) Credentials(ctx context.Context) (Credentials, error) {
	if creds, err := p.Env.Credentials(ctx); err == nil {
		return creds, nil
	}
	if err := ctx.Err(); err != nil {
		return Credentials{}, err
	}

	in := p.In
	if in == nil {
		in = os.Stdin
	}
	out := p.Out
	if out == nil {
		out = os.Stderr
	}
	if p.reader == nil {
		p.reader = bufio.NewReader(in)
	}

	email := p.Env.Email
	if email == "" {
		email = os.Getenv(EnvEmail)
	}
	if email == "" {
		fmt.Fprint(out, "Zendesk email: ")
		line, err := p.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return Credentials{}, fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}

	fmt.Fprint(out, "Zendesk API token: ")
	token, err := p.secret(in)
	fmt.Fprintln(out)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read API token: %w", err)
	}

	creds := Credentials{Email: email, Token: NewSecretBytes(token)}
	if err := creds.Validate(); err != nil {
		creds.Destroy()
		return Credentials{}, err
	}
	return creds, nil
}

func (p *PromptProvider) secret(in *os.File) ([]byte, error) {
	fd := int(in.Fd())
	read := p.readSecret
	if read == nil && term.IsTerminal(fd) {
		read = term.ReadPassword
	}
	if read != nil {
		b, err := read(fd)
		if err != nil {
			return nil, err
		}
		return bytes.TrimSpace(b), nil
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return []byte(strings.TrimSpace(line)), nil
}
