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
	"os/exec"

	"github.com/facbuild/fac/internal/execsupport"
)

// Blind runs the command directly with no tracing: the scheduler learns
// nothing beyond what the rule declared explicitly. Used for --blind mode.
type Blind struct{}

func (Blind) Trace(ctx context.Context, argv []string, dir string, env []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.New("trace: empty argv")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //#nosec G204
	cmd.Dir = dir
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := execsupport.Run(cmd)
	result := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, err
	}
	return result, nil
}
