// Copyright 2025 The Fac Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package trace

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"

	"github.com/facbuild/fac/internal/execsupport"
)

// Strace traces a command by shelling out to the system strace(1),
// capturing the subset of syscalls that name a filesystem path.
type Strace struct {
	// Path to the strace binary. Defaults to "strace" if empty.
	Path string
}

var strictOpenSyscalls = []string{
	"open", "openat", "stat", "lstat", "fstatat", "mkdir", "mkdirat",
	"rename", "renameat", "renameat2", "unlink", "unlinkat", "creat",
	"execve",
}

func (s Strace) Trace(ctx context.Context, argv []string, dir string, env []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New("trace: empty argv")
	}
	straceBin := s.Path
	if straceBin == "" {
		straceBin = "strace"
	}

	logFile, err := os.CreateTemp("", "fac-strace-*.log")
	if err != nil {
		return nil, err
	}
	logPath := logFile.Name()
	logFile.Close()
	defer os.Remove(logPath) //nolint:errcheck

	traceExpr := "trace=" + joinComma(strictOpenSyscalls)
	fullArgv := append([]string{straceBin, "-f", "-y", "-s", "4096", "-e", traceExpr, "-o", logPath, "--"}, argv...)

	cmd := exec.CommandContext(ctx, fullArgv[0], fullArgv[1:]...) //#nosec G204
	cmd.Dir = dir
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := execsupport.Run(cmd)

	result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return result, runErr
		}
	}

	log, err := os.ReadFile(logPath) //#nosec G304
	if err != nil {
		// The tracer's log could not be read. Report exit status only;
		// the scheduler will
		// treat this run as having discovered no dependencies.
		return result, nil
	}
	paths := parseStraceLog(log)
	result.Reads = paths.reads
	result.Writes = paths.writes
	result.Mkdirs = paths.mkdirs
	result.Removes = paths.removes
	return result, nil
}

func joinComma(items []string) string {
	var b bytes.Buffer
	for i, it := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(it)
	}
	return b.String()
}
