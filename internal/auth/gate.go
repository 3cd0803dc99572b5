// Package auth implements the license/password gate in front of the ledger.
//
// The gate is a small state machine: login, then an optional forced password
// change, then the application. Passwords are stored as typed; the gate keeps
// casual users apart and is not meant to resist an attacker.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"taxiledger/internal/core"
)

// MinPasswordLength is the shortest password accepted by ChangePassword.
const MinPasswordLength = 4

// Stage is the current step of the gate.
type Stage string

const (
	StageLogin  Stage = "login"
	StageChange Stage = "change"
	StageApp    Stage = "app"
)

var (
	ErrEmptyLicense      = errors.New("license is required")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrWrongStage        = errors.New("operation not allowed at this stage")
	ErrPasswordTooShort  = errors.New("password must be at least 4 characters")
	ErrPasswordMismatch  = errors.New("passwords do not match")
)

// CredentialStore persists the credential table shared by every license.
type CredentialStore interface {
	LoadCredentials(ctx context.Context) (core.Credentials, error)
	SaveCredentials(ctx context.Context, creds core.Credentials) error
}

// Gate tracks one user's progress through login. It is not safe for
// concurrent use; callers serialize access.
type Gate struct {
	store   CredentialStore
	stage   Stage
	license string
	message string
}

// NewGate returns a gate at the login stage.
func NewGate(store CredentialStore) *Gate {
	return &Gate{store: store, stage: StageLogin}
}

// Stage returns the current stage.
func (g *Gate) Stage() Stage { return g.stage }

// License returns the license bound to the gate, empty at the login stage.
func (g *Gate) License() string { return g.license }

// Message returns the text of the last failure, or empty after a success.
func (g *Gate) Message() string { return g.message }

// Login checks license and password. A license never seen before is
// registered with its own name as password and must change it before
// reaching the application.
func (g *Gate) Login(ctx context.Context, license, password string) error {
	if g.stage != StageLogin {
		return g.fail(ErrWrongStage)
	}
	license = strings.TrimSpace(license)
	if license == "" {
		return g.fail(ErrEmptyLicense)
	}

	creds, err := g.store.LoadCredentials(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	cred, ok := creds[license]
	if !ok {
		cred = core.Credential{Password: license, MustChange: true}
		creds[license] = cred
		if err := g.store.SaveCredentials(ctx, creds); err != nil {
			return fmt.Errorf("register license: %w", err)
		}
	}

	if password != cred.Password {
		return g.fail(ErrIncorrectPassword)
	}

	g.license = license
	g.message = ""
	if cred.MustChange {
		g.stage = StageChange
	} else {
		g.stage = StageApp
	}
	return nil
}

// ChangePassword replaces the initial password. The length rule is checked
// before the confirmation.
func (g *Gate) ChangePassword(ctx context.Context, newPass, confirm string) error {
	if g.stage != StageChange {
		return g.fail(ErrWrongStage)
	}
	if utf8.RuneCountInString(newPass) < MinPasswordLength {
		return g.fail(ErrPasswordTooShort)
	}
	if newPass != confirm {
		return g.fail(ErrPasswordMismatch)
	}

	creds, err := g.store.LoadCredentials(ctx)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	creds[g.license] = core.Credential{Password: newPass, MustChange: false}
	if err := g.store.SaveCredentials(ctx, creds); err != nil {
		return fmt.Errorf("save password: %w", err)
	}

	g.stage = StageApp
	g.message = ""
	return nil
}

// Logout returns to the login stage and forgets the license.
func (g *Gate) Logout() {
	g.stage = StageLogin
	g.license = ""
	g.message = ""
}

func (g *Gate) fail(err error) error {
	g.message = err.Error()
	return err
}
