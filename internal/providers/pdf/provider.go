// Package pdf renders downloadable documents. The only document today
// is the monthly trainer settlement statement.
package pdf

import (
	"context"
	"io"
)

type Provider interface {
	GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error)
}

// NoOpProvider satisfies Provider without producing output. Used in
// tests that exercise handlers around the download path.
type NoOpProvider struct{}

func (p *NoOpProvider) GenerateStatement(ctx context.Context, data StatementData) (io.Reader, error) {
	return nil, nil
}
