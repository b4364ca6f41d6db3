// Copyright (c) 2014 The AUTHORS
//
// This file is part of chainrpc.
//
// chainrpc is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// chainrpc is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with chainrpc.  If not, see <http://www.gnu.org/licenses/>.

// Package slogx abstracts the *slog.Logger behavior chainrpc's
// dispatcher and server use for lifecycle logging, so
// callers can plug in a real logger without chainrpc importing
// log/slog's concrete handler configuration. The default is a no-op, so
// the library stays silent unless a caller opts in.
package slogx

// Logger abstracts the *slog.Logger behavior chainrpc needs. *slog.Logger
// satisfies this interface directly.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Default returns the library default: a no-op logger, so chainrpc never
// writes to stdout/stderr unless a caller configures one.
func Default() Logger {
	return discard{}
}

type discard struct{}

var _ Logger = discard{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}
