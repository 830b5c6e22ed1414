// Package cli holds the interactive one-shot commands run against the trust
// core, starting with creating the owner account.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var ErrPasswordsDiffer = errors.New("passwords do not match")

// OwnerCreator creates the sole owner account.
type OwnerCreator interface {
	BootstrapOwner(ctx context.Context, username, password string) (domain.Identity, error)
}

// Bootstrap prompts for the owner's username and password, creates the
// account and prints its second factor once.
type Bootstrap struct {
	Core OwnerCreator
	In   *bufio.Reader
	Out  io.Writer
	Fd   int // Terminal read for hidden password input
}

func (b *Bootstrap) Run(ctx context.Context) error {
	username, err := b.readLine("Owner username: ")
	if err != nil {
		return err
	}

	password, err := b.readHidden("Password: ")
	if err != nil {
		return err
	}
	defer wipe(password)

	confirm, err := b.readHidden("Confirm password: ")
	if err != nil {
		return err
	}
	defer wipe(confirm)

	if string(password) != string(confirm) {
		return ErrPasswordsDiffer
	}

	owner, err := b.Core.BootstrapOwner(ctx, username, string(password))
	if err != nil {
		return err
	}

	b.printSecrets(owner)
	return nil
}

func (b *Bootstrap) readLine(prompt string) (string, error) {
	if _, err := fmt.Fprint(b.Out, prompt); err != nil {
		return "", err
	}
	line, err := b.In.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (b *Bootstrap) readHidden(prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(b.Out, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(b.Fd)
	fmt.Fprintln(b.Out)
	if err != nil {
		return nil, fmt.Errorf("read password: %w", err)
	}
	return pw, nil
}

func (b *Bootstrap) printSecrets(owner domain.Identity) {
	w := b.Out
	fmt.Fprintf(w, "\nOwner %q created (id %s).\n\n", owner.Username, owner.ID)
	fmt.Fprintln(w, "Add this secret to your authenticator app:")
	fmt.Fprintf(w, "  secret: %s\n", owner.MFASecret)
	fmt.Fprintf(w, "  url:    %s\n\n", owner.OTPAuthURL)
	fmt.Fprintln(w, "Recovery codes (each works once):")
	for _, code := range owner.RecoveryCodes {
		fmt.Fprintf(w, "  %s\n", code)
	}
	fmt.Fprintln(w, "\nSave these now. They will not be shown again.")
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
