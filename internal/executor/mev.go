package executor

import (
	"context"

	"github.com/alanyoungcy/crossarb/internal/domain"
)

// MEVGuard is consulted with both legs before anything is sent. Returning an
// error aborts the execution.
type MEVGuard interface {
	Protect(ctx context.Context, long, short domain.OrderRequest) error
}

// NoopGuard accepts everything.
type NoopGuard struct{}

func (NoopGuard) Protect(context.Context, domain.OrderRequest, domain.OrderRequest) error {
	return nil
}
