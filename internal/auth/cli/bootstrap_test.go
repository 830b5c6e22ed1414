package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/siteadmin/internal/auth/domain"
)

type fakeCore struct {
	username, password string
	err                error
}

func (f *fakeCore) BootstrapOwner(_ context.Context, username, password string) (domain.Identity, error) {
	f.username, f.password = username, password
	if f.err != nil {
		return domain.Identity{}, f.err
	}
	return domain.Identity{
		ID:            "id-1",
		Username:      username,
		Role:          domain.RoleOwner,
		MFASecret:     "JBSWY3DPEHPK3PXP",
		OTPAuthURL:    "otpauth://totp/SiteAdmin:root",
		RecoveryCodes: []string{"AAAA-BBBB-CCCC-DDDD", "1111-2222-3333-4444"},
	}, nil
}

// stubPasswords makes readPassword return answers in order and records the
// returned buffers.
func stubPasswords(t *testing.T, answers ...string) *[][]byte {
	t.Helper()
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	var handed [][]byte
	readPassword = func(int) ([]byte, error) {
		if len(answers) == 0 {
			return nil, errors.New("no more input")
		}
		b := []byte(answers[0])
		answers = answers[1:]
		handed = append(handed, b)
		return b, nil
	}
	return &handed
}

func TestBootstrap_Run(t *testing.T) {
	handed := stubPasswords(t, "CorrectHorseBattery9", "CorrectHorseBattery9")
	core := &fakeCore{}
	var out bytes.Buffer

	b := &Bootstrap{Core: core, In: bufio.NewReader(strings.NewReader("root\n")), Out: &out}
	require.NoError(t, b.Run(context.Background()))

	require.Equal(t, "root", core.username)
	require.Equal(t, "CorrectHorseBattery9", core.password)

	printed := out.String()
	require.Contains(t, printed, "JBSWY3DPEHPK3PXP")
	require.Contains(t, printed, "otpauth://totp/SiteAdmin:root")
	require.Contains(t, printed, "AAAA-BBBB-CCCC-DDDD")
	require.Contains(t, printed, "will not be shown again")
	require.NotContains(t, printed, "CorrectHorseBattery9")

	for _, buf := range *handed {
		require.Equal(t, make([]byte, len(buf)), buf, "password buffer not wiped")
	}
}

func TestBootstrap_Mismatch(t *testing.T) {
	stubPasswords(t, "CorrectHorseBattery9", "CorrectHorseBattery8")
	core := &fakeCore{}

	b := &Bootstrap{Core: core, In: bufio.NewReader(strings.NewReader("root\n")), Out: &bytes.Buffer{}}
	require.ErrorIs(t, b.Run(context.Background()), ErrPasswordsDiffer)
	require.Empty(t, core.username)
}

func TestBootstrap_CoreError(t *testing.T) {
	stubPasswords(t, "short", "short")
	sentinel := errors.New("weak")
	core := &fakeCore{err: sentinel}

	b := &Bootstrap{Core: core, In: bufio.NewReader(strings.NewReader("root")), Out: &bytes.Buffer{}}
	require.ErrorIs(t, b.Run(context.Background()), sentinel)
	require.Equal(t, "root", core.username)
}

func TestBootstrap_ReadError(t *testing.T) {
	stubPasswords(t)

	b := &Bootstrap{Core: &fakeCore{}, In: bufio.NewReader(strings.NewReader("root\n")), Out: &bytes.Buffer{}}
	require.Error(t, b.Run(context.Background()))
}
