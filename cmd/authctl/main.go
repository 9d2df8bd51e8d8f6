// authctl is an operator tool for authcore deployments.
//
// Usage:
//
//	authctl hash      [--password PW]          print an argon2id hash (reads stdin without --password)
//	authctl verify    --hash HASH [--password PW]
//	authctl strength  [--password PW]          policy violations, score and label
//	authctl generate  [--length N] [--token --bytes N]
//	authctl issue     --subject ID --username NAME [--role R]... [--perm P]... [--ttl D]
//	authctl decode    TOKEN [--verify]
//	authctl loadtest  [--concurrency N] [--ops N] [--logins N] [--redis-addr ADDR]
//	authctl benchcheck --baseline OLD.txt --candidate NEW.txt [--threshold 0.30]
//
// Token commands read configuration the same way services do: an optional
// file from --config and AUTHCORE_* environment overrides.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

// exitError carries a non-default exit status without printing anything.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func (e exitError) ExitCode() int { return e.code }

type command struct {
	summary string
	run     func(env *cliEnv, args []string) error
}

var commands = map[string]command{
	"hash":       {"hash a password with argon2id", runHash},
	"verify":     {"check a password against a stored hash", runVerify},
	"strength":   {"report password policy violations and score", runStrength},
	"generate":   {"generate a policy-compliant password or opaque token", runGenerate},
	"issue":      {"sign an access or refresh token", runIssue},
	"decode":     {"print token claims", runDecode},
	"loadtest":   {"measure issue/verify/authorize/login throughput", runLoadTest},
	"benchcheck": {"compare two benchmark runs against a regression threshold", runBenchCheck},
}

// cliEnv holds the process streams so tests can drive run directly.
type cliEnv struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	env := &cliEnv{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := run(env, os.Args[1:]); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(env *cliEnv, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(env.stdout)
		return nil
	}

	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(env.stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}
	return cmd.run(env, args[1:])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: authctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-10s %s\n", name, commands[name].summary)
	}
}

// newFlagSet returns a flag set that reports errors instead of exiting.
func newFlagSet(env *cliEnv, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("authctl "+name, pflag.ContinueOnError)
	fs.SetOutput(env.stderr)
	return fs
}

// parseFlags parses args and turns --help into a clean return.
func parseFlags(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// readSecret returns flagValue if set, otherwise the first line of stdin.
func readSecret(env *cliEnv, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	data, err := io.ReadAll(io.LimitReader(env.stdin, 64*1024))
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return "", errors.New("no password given (use --password or stdin)")
	}
	return line, nil
}
