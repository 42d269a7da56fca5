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

package engine

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoadFacTum reads the .fac.tum sibling of a .fac file, restoring
// remembered edges and fingerprints (spec §4.4).
//
// The format is advisory: any malformed or stale line degrades gracefully
// (the line is ignored, the affected rule is simply treated as never run)
// rather than aborting the load, per the Persistence-tolerance design
// note.
func (s *Store) LoadFacTum(tumPath string) error {
	facfile := strings.TrimSuffix(tumPath, ".tum")
	dir := filepath.Dir(facfile)

	b, err := os.ReadFile(tumPath) //#nosec G304
	if err != nil {
		return &IOError{Path: tumPath, Err: err}
	}

	var cur RuleRef
	haveCur, curKnown := false, false
	var lastFile FileRef
	haveLastFile := false

	for _, raw := range bytes.Split(b, []byte("\n")) {
		line := string(raw)
		if len(line) < 2 || line[1] != ' ' {
			continue
		}
		tag, payload := line[0], line[2:]

		switch tag {
		case '|':
			r, ok := s.LookupRule(payload, dir)
			haveCur, curKnown = true, ok
			if ok {
				cur = r
			}
			haveLastFile = false

		case '<':
			if !haveCur {
				continue
			}
			f := s.File(payload)
			lastFile, haveLastFile = f, true
			if curKnown {
				_ = s.AddImplicitInput(cur, f)
			}

		case '>':
			if !haveCur {
				continue
			}
			f := s.File(payload)
			lastFile, haveLastFile = f, true
			if curKnown {
				_ = s.AddImplicitOutput(cur, f)
			} else if !s.IsInGit(f) {
				// Stale output of a rule that no longer exists in this
				// .fac: remove it so it doesn't linger as orphaned state.
				os.Remove(payload) //nolint:errcheck
			}

		case 'H':
			if !haveLastFile || !curKnown {
				continue
			}
			fp, ok := decodeFingerprint(payload)
			if !ok {
				continue
			}
			s.SetRuleHashstat(cur, lastFile, fp)
		}
	}
	return nil
}

// SaveFacTum writes the .fac.tum sibling of facfile: one record per rule
// declared in it, listing every entry of all_inputs/all_outputs with its
// recorded fingerprint.
func (s *Store) SaveFacTum(facfile string) error {
	ff, ok := s.LookupFile(facfile)
	if !ok {
		return nil
	}
	rulesIn := s.RulesDefinedIn(ff)
	if len(rulesIn) == 0 {
		return nil
	}

	rules := make([]RuleRef, 0, len(rulesIn))
	for r := range rulesIn {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return s.Command(rules[i]) < s.Command(rules[j]) })

	var buf bytes.Buffer
	for _, r := range rules {
		buf.WriteString("| ")
		buf.WriteString(s.Command(r))
		buf.WriteByte('\n')

		writeEdges(&buf, s, r, s.AllInputs(r), '<')
		writeEdges(&buf, s, r, s.AllOutputs(r), '>')
	}

	tumPath := facfile + ".tum"
	if err := os.WriteFile(tumPath, buf.Bytes(), 0o644); err != nil { //#nosec G306
		return &IOError{Path: tumPath, Err: err}
	}
	return nil
}

func writeEdges(buf *bytes.Buffer, s *Store, r RuleRef, edges map[FileRef]struct{}, tag byte) {
	paths := make([]FileRef, 0, len(edges))
	for f := range edges {
		paths = append(paths, f)
	}
	sort.Slice(paths, func(i, j int) bool { return s.Path(paths[i]) < s.Path(paths[j]) })
	for _, f := range paths {
		buf.WriteByte(tag)
		buf.WriteByte(' ')
		buf.WriteString(s.Path(f))
		buf.WriteByte('\n')
		if fp, ok := s.RuleHashstat(r, f); ok {
			buf.WriteString("H ")
			buf.WriteString(encodeFingerprint(fp))
			buf.WriteByte('\n')
		}
	}
}

// encodeFingerprint produces the wire form of spec §6: a byte-encoded
// record containing kind, size, mtime, content-hash bytes and the
// captured environment subset, base64'd so it fits on a single .fac.tum
// line and round-trips exactly.
func encodeFingerprint(fp Fingerprint) string {
	var buf bytes.Buffer
	buf.WriteByte(byte(fp.Kind))
	writeInt64(&buf, fp.Size)
	writeInt64(&buf, fp.MTime)
	writeBytes(&buf, fp.Hash)
	writeUint32(&buf, uint32(len(fp.Env)))
	for _, e := range fp.Env {
		writeBytes(&buf, []byte(e.Name))
		writeBytes(&buf, []byte(e.Value))
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// decodeFingerprint is the inverse of encodeFingerprint. ok is false for
// any malformed payload, so the caller can drop the line per the
// persistence-tolerance policy.
func decodeFingerprint(payload string) (fp Fingerprint, ok bool) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Fingerprint{}, false
	}
	r := bytes.NewReader(raw)
	kindByte, err := r.ReadByte()
	if err != nil {
		return Fingerprint{}, false
	}
	size, err := readInt64(r)
	if err != nil {
		return Fingerprint{}, false
	}
	mtime, err := readInt64(r)
	if err != nil {
		return Fingerprint{}, false
	}
	hash, err := readBytes(r)
	if err != nil {
		return Fingerprint{}, false
	}
	envCount, err := readUint32(r)
	if err != nil {
		return Fingerprint{}, false
	}
	env := make([]EnvVar, 0, envCount)
	for i := uint32(0); i < envCount; i++ {
		name, err := readBytes(r)
		if err != nil {
			return Fingerprint{}, false
		}
		value, err := readBytes(r)
		if err != nil {
			return Fingerprint{}, false
		}
		env = append(env, EnvVar{Name: string(name), Value: string(value)})
	}
	return Fingerprint{Kind: Kind(kindByte), Size: size, MTime: mtime, Hash: hash, Env: env}, true
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func readInt64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := r.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := r.Read(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}
