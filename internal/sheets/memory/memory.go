// Package memory is an in-process report sink used by tests and by the CLI
// when no spreadsheet is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"fincast/internal/core"
	ports "fincast/internal/sheets"
)

var _ ports.ReportExporter = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	rows [][]any
}

func New() *Store {
	return &Store{}
}

// ExportReports stores the rows and returns a synthetic range reference.
func (s *Store) ExportReports(ctx context.Context, reports []core.Report) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(reports) == 0 {
		return "", nil
	}
	first := len(s.rows) + 1
	for _, r := range reports {
		s.rows = append(s.rows, ports.Row(r))
	}
	return fmt.Sprintf("mem:%d-%d", first, len(s.rows)), nil
}

// Rows returns a copy of every exported row.
func (s *Store) Rows() [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]any, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]any(nil), r...)
	}
	return out
}
