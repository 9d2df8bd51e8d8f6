package main

import (
	"errors"
	"fmt"

	"github.com/atulya-tantra/authcore/password"
)

func runHash(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "hash")
	pw := fs.String("password", "", "password to hash (default: first line of stdin)")
	cost := addCostFlags(fs)
	force := fs.Bool("force", false, "hash even if the password fails the strength policy")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}

	secret, err := readSecret(env, *pw)
	if err != nil {
		return err
	}
	if ok, violations := password.ValidateStrength(secret); !ok && !*force {
		printViolations(env, violations)
		return errors.New("password rejected by policy (use --force to hash anyway)")
	}

	hasher, err := password.NewArgon2(*cost)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(secret)
	if err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, hash)
	return nil
}

func runVerify(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "verify")
	hash := fs.String("hash", "", "stored argon2id or bcrypt hash")
	pw := fs.String("password", "", "candidate password (default: first line of stdin)")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if *hash == "" {
		return errors.New("--hash is required")
	}

	secret, err := readSecret(env, *pw)
	if err != nil {
		return err
	}

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return err
	}
	ok, err := hasher.Verify(secret, *hash)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(env.stdout, "mismatch")
		return exitError{code: 1}
	}

	fmt.Fprintln(env.stdout, "match")
	if upgrade, err := hasher.NeedsUpgrade(*hash); err == nil && upgrade {
		fmt.Fprintln(env.stdout, "note: hash uses outdated parameters and should be rehashed")
	}
	return nil
}

func runStrength(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "strength")
	pw := fs.String("password", "", "password to rate (default: first line of stdin)")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}

	secret, err := readSecret(env, *pw)
	if err != nil {
		return err
	}

	ok, violations := password.ValidateStrength(secret)
	score := password.Score(secret)
	fmt.Fprintf(env.stdout, "valid: %t\nscore: %d\nstrength: %s\n", ok, score, password.StrengthOf(score))
	printViolations(env, violations)
	if !ok {
		return exitError{code: 1}
	}
	return nil
}

func runGenerate(env *cliEnv, args []string) error {
	fs := newFlagSet(env, "generate")
	length := fs.IntP("length", "n", password.DefaultGenerateLength, "password length")
	token := fs.Bool("token", false, "emit an opaque URL-safe token instead of a password")
	nBytes := fs.Int("bytes", 32, "random bytes for --token")
	count := fs.IntP("count", "c", 1, "how many values to print")
	if help, err := parseFlags(fs, args); help || err != nil {
		return err
	}
	if *count < 1 {
		return errors.New("--count must be >= 1")
	}

	for i := 0; i < *count; i++ {
		var (
			out string
			err error
		)
		if *token {
			out, err = password.GenerateToken(*nBytes)
		} else {
			out, err = password.Generate(*length)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(env.stdout, out)
	}
	return nil
}

func printViolations(env *cliEnv, violations []password.Violation) {
	for _, v := range violations {
		fmt.Fprintf(env.stdout, "  - %s\n", v.Message())
	}
}
