// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reporter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rivo/uniseg"
)

var (
	// ErrInvalidSource is a sentinel error that is returned by a Handler when
	// errors were reported but the reporter did not return a non-nil error.
	ErrInvalidSource = errors.New("parse failed: invalid source")

	// ErrLex classifies diagnostics for bytes the lexer could not turn into
	// any token.
	ErrLex = errors.New("unrecognized input")
	// ErrSyntax classifies diagnostics for tokens the parser had to discard
	// or wrap in an error node.
	ErrSyntax = errors.New("syntax error")
)

// SourcePos identifies a location in a source document.
//
// Line and Col are 1-based. Col counts grapheme clusters, so that a column
// matches what an editor shows for text containing combining sequences.
type SourcePos struct {
	Filename string
	Offset   int
	Line     int
	Col      int
}

func (pos SourcePos) String() string {
	if pos.Line <= 0 || pos.Col <= 0 {
		return pos.Filename
	}
	return fmt.Sprintf("%s:%d:%d", pos.Filename, pos.Line, pos.Col)
}

// PositionOf computes the line and column of the given byte offset in src.
func PositionOf(filename, src string, offset int) SourcePos {
	offset = max(0, min(offset, len(src)))
	before := src[:offset]
	line := strings.Count(before, "\n") + 1
	lineStart := strings.LastIndexByte(before, '\n') + 1
	return SourcePos{
		Filename: filename,
		Offset:   offset,
		Line:     line,
		Col:      uniseg.GraphemeClusterCount(before[lineStart:]) + 1,
	}
}

// ErrorWithPos is an error about a source document that includes information
// about the location in the file that caused the error.
//
// The value of Error() will contain both the SourcePos and Underlying error.
// The value of Unwrap() will only be the Underlying error.
type ErrorWithPos interface {
	error
	GetPosition() SourcePos
	Unwrap() error
}

// Error creates a new ErrorWithPos from the given error and source position.
func Error(pos SourcePos, err error) ErrorWithPos {
	return errorWithSourcePos{pos: pos, underlying: err}
}

// Errorf creates a new ErrorWithPos whose underlying error is created using
// the given message format and arguments (via fmt.Errorf).
func Errorf(pos SourcePos, format string, args ...any) ErrorWithPos {
	return errorWithSourcePos{pos: pos, underlying: fmt.Errorf(format, args...)}
}

type errorWithSourcePos struct {
	underlying error
	pos        SourcePos
}

func (e errorWithSourcePos) Error() string {
	return fmt.Sprintf("%s: %v", e.pos, e.underlying)
}

func (e errorWithSourcePos) GetPosition() SourcePos {
	return e.pos
}

func (e errorWithSourcePos) Unwrap() error {
	return e.underlying
}

var _ ErrorWithPos = errorWithSourcePos{}
