package sdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/golang/glog"
)

// FindRuntime looks up the named tool in PATH.
func FindRuntime(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

// Run executes a tool to completion and returns its trimmed combined output.
func Run(ctx context.Context, name string, args ...string) (string, error) {
	path, err := FindRuntime(name)
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, path, args...)
	glog.V(2).Infof("running %q\n", cmd)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w (output: %q)", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Stream is a long running tool which dumps raw samples to stdout.
type Stream struct {
	cmd *exec.Cmd
	out *bufio.Reader

	stopOnce sync.Once
}

// StartStream starts the named tool. The stream keeps running until Stop is called.
func StartStream(name string, args ...string) (*Stream, error) {
	path, err := FindRuntime(name)
	if err != nil {
		return nil, err
	}
	cmd := exec.Command(path, args...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	// Start() executes command asynchronically.
	glog.Infof("running %q\n", cmd)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("unable to start %s: %w", name, err)
	}
	return &Stream{
		cmd: cmd,
		out: bufio.NewReaderSize(out, 1<<16),
	}, nil
}

// ReadFull fills buf completely with bytes from the tool's stdout.
func (s *Stream) ReadFull(ctx context.Context, buf []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := io.ReadFull(s.out, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("sample stream ended: %w", err)
		}
		return err
	}
	return nil
}

// Stop kills the tool and reaps it. It is safe to call more than once.
func (s *Stream) Stop() error {
	if s == nil {
		return nil
	}
	s.stopOnce.Do(func() {
		if s.cmd.Process != nil {
			if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				glog.V(1).Infof("unable to kill %q: %s\n", s.cmd, err)
			}
		}
		// Wait reports the kill signal which is expected here.
		if err := s.cmd.Wait(); err != nil {
			glog.V(2).Infof("%q exited: %s\n", s.cmd, err)
		}
	})
	return nil
}
