/*
coreburn — CPU burn-in and stability validation tool in Go
Copyright (C) 2025  Pepijn van der Stap <coreburn@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package report

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Sink persists reporting snapshots. Opened once at monitor start, closed
// once at stop; Close errors are best-effort and callers may ignore them.
type Sink interface {
	Write(rec Record) error
	Close() error
}

// FileSink appends one structured JSON line per record to a file through
// logrus.
type FileSink struct {
	logger *logrus.Logger
	file   *os.File
}

// NewFileSink opens (or creates) the report file in append mode.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening report file %q: %w", path, err)
	}

	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(f)
	l.SetLevel(logrus.InfoLevel)

	return &FileSink{logger: l, file: f}, nil
}

// Write appends one record.
func (s *FileSink) Write(rec Record) error {
	s.logger.WithFields(logrus.Fields{
		"device":        rec.Device,
		"errors":        rec.Errors,
		"progress":      rec.Progress,
		"sensors":       rec.Sensors,
		"queued_errors": rec.QueuedErrors,
		"snapshot_time": rec.Timestamp,
	}).Info("monitor tick")
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	return s.file.Close()
}
