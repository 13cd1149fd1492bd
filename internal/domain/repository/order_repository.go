package repository

import (
	"context"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
)

// OrderRepository es el acceso de solo lectura a los pedidos del comercio.
// Save existe para la ingesta de pedidos desde el webhook del comercio.
type OrderRepository interface {
	FindByID(ctx context.Context, id int64) (*entity.Order, error)
	// FindByNumber busca por número visible (índice único, sin barridos).
	FindByNumber(ctx context.Context, number string) (*entity.Order, error)
	Save(ctx context.Context, order *entity.Order) error
}
