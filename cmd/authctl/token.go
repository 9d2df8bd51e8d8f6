package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atulya-tantra/authcore"
	"github.com/atulya-tantra/authcore/password"
	"github.com/atulya-tantra/authcore/permission"
)

type claimsView struct {
	Subject     string     `json:"sub"`
	Username    string     `json:"username,omitempty"`
	Kind        string     `json:"typ"`
	Roles       []string   `json:"roles,omitempty"`
	Permissions []string   `json:"perms,omitempty"`
	TokenID     string     `json:"jti,omitempty"`
	SessionID   string     `json:"sid,omitempty"`
	IssuedAt    time.Time  `json:"iat"`
	ExpiresAt   *time.Time `json:"exp,omitempty"`
	Expired     bool       `json:"expired"`
	Verified    bool       `json:"verified"`
}

func newClaimsView(c *authcore.Claims, expired, verified bool) claimsView {
	perms := make([]string, len(c.Permissions))
	for i, p := range c.Permissions {
		perms[i] = string(p)
	}
	return claimsView{
		Subject:     c.Subject,
		Username:    c.Username,
		Kind:        string(c.Kind),
		Roles:       permission.RoleStrings(c.Roles),
		Permissions: perms,
		TokenID:     c.TokenID,
		SessionID:   c.SessionID,
		IssuedAt:    c.IssuedAt,
		ExpiresAt:   c.ExpiresAt,
		Expired:     expired,
		Verified:    verified,
	}
}

func writeJSON(env *cliEnv, v any) error {
	enc := json.NewEncoder(env.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runIssue(env *cliEnv, args []string) error {
	var sf serviceFlags
	fs := newFlagSet(env, "issue")
	sf.AddFlags(fs)
	subject := fs.String("subject", "", "token subject (user id)")
	username := fs.String("username", "", "username claim")
	kind := fs.String("kind", string(authcore.KindAccess), "token kind: access or refresh")
	roles := fs.StringSlice("role", nil, "role to embed (repeatable)")
	perms := fs.StringSlice("perm", nil, "explicit permission to embed (repeatable)")
	ttl := fs.Duration("ttl", 0, "lifetime override (default from config)")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if *subject == "" {
		return errors.New("--subject is required")
	}

	parsedRoles := make([]permission.Role, 0, len(*roles))
	for _, label := range *roles {
		r, err := permission.ParseRole(label)
		if err != nil {
			return err
		}
		parsedRoles = append(parsedRoles, r)
	}
	parsedPerms := make([]permission.Permission, 0, len(*perms))
	for _, label := range *perms {
		p, err := permission.ParsePermission(label)
		if err != nil {
			return err
		}
		parsedPerms = append(parsedPerms, p)
	}

	svc, err := sf.build(env)
	if err != nil {
		return err
	}
	defer svc.Close()

	var opts []authcore.IssueOption
	if fs.Changed("ttl") {
		opts = append(opts, authcore.WithTTL(*ttl))
	}

	ctx := context.Background()
	var token string
	switch authcore.TokenKind(*kind) {
	case authcore.KindAccess:
		token, _, err = svc.IssueAccess(ctx, *subject, *username, parsedRoles, parsedPerms, opts...)
	case authcore.KindRefresh:
		if len(parsedRoles) > 0 || len(parsedPerms) > 0 {
			return errors.New("refresh tokens carry no roles or permissions")
		}
		token, _, err = svc.IssueRefresh(ctx, *subject, *username, opts...)
	default:
		return fmt.Errorf("unknown token kind %q", *kind)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(env.stdout, token)
	return nil
}

func runDecode(env *cliEnv, args []string) error {
	var sf serviceFlags
	fs := newFlagSet(env, "decode")
	sf.AddFlags(fs)
	verify := fs.Bool("verify", false, "check signature and lifetime with the configured key")
	kind := fs.String("kind", string(authcore.KindAccess), "expected kind with --verify")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: authctl decode TOKEN [--verify]")
	}
	token := fs.Arg(0)

	if *verify {
		svc, err := sf.build(env)
		if err != nil {
			return err
		}
		defer svc.Close()

		claims, err := svc.Verify(context.Background(), token, authcore.TokenKind(*kind))
		if err != nil {
			return err
		}
		return writeJSON(env, newClaimsView(claims, false, true))
	}

	svc, err := decodeOnlyService(env, &sf)
	if err != nil {
		return err
	}
	defer svc.Close()

	claims, err := svc.DecodeUnsafe(token)
	if err != nil {
		return err
	}
	return writeJSON(env, newClaimsView(claims, svc.IsExpired(token), false))
}

// decodeOnlyService prefers the configured service. Without a usable key it
// falls back to a throwaway secret, which is fine because unverified decoding
// never touches the key.
func decodeOnlyService(env *cliEnv, sf *serviceFlags) (*authcore.Service, error) {
	if svc, err := sf.build(env); err == nil {
		return svc, nil
	}

	secret, err := password.GenerateToken(32)
	if err != nil {
		return nil, err
	}
	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(secret)
	return authcore.New().
		WithConfig(cfg).
		WithLogger(sf.logger(env)).
		Build()
}
