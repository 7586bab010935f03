// Copyright (c) 2026 w3tools
// SPDX-License-Identifier: MIT

package mpq

import (
	"strings"

	"github.com/pkg/errors"
)

// Stack layers archives the way the game client does: later archives
// override earlier ones, so patch archives are pushed on top of the
// base data they amend.
type Stack struct {
	archives []*Archive
}

func NewStack(archives ...*Archive) *Stack {
	return &Stack{archives: archives}
}

// Push adds an archive on top of the stack.
func (s *Stack) Push(a *Archive) {
	s.archives = append(s.archives, a)
}

// ReadFile returns the contents of the named file from the topmost
// archive that contains it.
func (s *Stack) ReadFile(name string) ([]byte, error) {
	for i := len(s.archives) - 1; i >= 0; i-- {
		if s.archives[i].HasFile(name) {
			return s.archives[i].ReadFile(name)
		}
	}
	return nil, errors.Wrapf(ErrFileNotFound, "%q", name)
}

// HasFile reports whether any archive in the stack contains the file.
func (s *Stack) HasFile(name string) bool {
	for i := len(s.archives) - 1; i >= 0; i-- {
		if s.archives[i].HasFile(name) {
			return true
		}
	}
	return false
}

// Files returns the union of all archive listings, deduplicated
// case-insensitively. Archives without a listing are skipped.
func (s *Stack) Files() ([]string, error) {
	seen := make(map[string]struct{})
	var all []string

	for i := len(s.archives) - 1; i >= 0; i-- {
		names, err := s.archives[i].Files()
		if errors.Is(err, ErrFileNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		for _, name := range names {
			key := strings.ToUpper(normalizePath(name))
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			all = append(all, name)
		}
	}

	return all, nil
}
