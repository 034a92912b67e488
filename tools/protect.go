package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/soamn/slicepdf/observability"
	"github.com/soamn/slicepdf/parser"
)

// DefaultQPDF is looked up on PATH when Toolkit.QPDF is empty.
const DefaultQPDF = "qpdf"

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrStillEncrypted  = errors.New("file is still encrypted")
	ErrEmptyPassword   = errors.New("password must not be empty")
)

// Output is what an external command printed and how it exited.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes external programs. err is only set when the program
// could not be started; a non-zero exit is reported in Output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExecRunner runs programs with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout, cmd.Stderr = &stdout, &stderr
	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		return out, nil
	}
	return out, err
}

// QPDFError is a failed qpdf invocation.
type QPDFError struct {
	ExitCode int
	Stderr   string
}

func (e *QPDFError) Error() string {
	return fmt.Sprintf("qpdf exited with code %d: %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (k *Toolkit) qpdf(ctx context.Context, args ...string) error {
	runner := k.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	bin := k.QPDF
	if bin == "" {
		bin = DefaultQPDF
	}
	out, err := runner.Run(ctx, bin, args...)
	if err != nil {
		return fmt.Errorf("run %s: %w", bin, err)
	}
	// Exit code 3 means qpdf finished with warnings.
	if out.ExitCode != 0 && out.ExitCode != 3 {
		if strings.Contains(string(out.Stderr), "invalid password") {
			return ErrInvalidPassword
		}
		return &QPDFError{ExitCode: out.ExitCode, Stderr: string(out.Stderr)}
	}
	if out.ExitCode == 3 {
		k.logger().Warn("qpdf reported warnings", observability.String("stderr", strings.TrimSpace(string(out.Stderr))))
	}
	return nil
}

// Protect writes an AES-256 encrypted copy of "in" to out, using password
// as both the user and owner password.
func (k *Toolkit) Protect(ctx context.Context, in, out, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	if _, err := os.Stat(in); err != nil {
		return fmt.Errorf("input file not found at %s: %w", in, err)
	}
	return k.qpdf(ctx, "--encrypt", password, password, "256", "--", in, out)
}

// Decrypt removes the encryption from "in" and writes the result to out.
// The output is parsed afterwards and deleted if it is still encrypted.
func (k *Toolkit) Decrypt(ctx context.Context, in, out, password string) error {
	if err := k.qpdf(ctx, "--password="+password, "--decrypt", in, out); err != nil {
		return err
	}
	if _, err := k.load(ctx, out); err != nil {
		if errors.Is(err, parser.ErrEncrypted) {
			os.Remove(out)
			return ErrStillEncrypted
		}
		return fmt.Errorf("read decrypted output: %w", err)
	}
	return nil
}
