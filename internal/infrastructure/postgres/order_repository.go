package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/tikusl4ju/myinvoice-sync/internal/domain/entity"
	"github.com/tikusl4ju/myinvoice-sync/internal/domain/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

// Tipos de línea en order_lines.
const (
	lineKindItem     = "item"
	lineKindShipping = "shipping"
	lineKindFee      = "fee"
)

// OrderRepo acceso a los pedidos ingeridos desde el comercio.
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador.
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

const orderColumns = `id, number, payment_method, billing, shipping, buyer_tin, buyer_id_type, buyer_id_value, created_at`

// FindByID busca el pedido por id. (nil, nil) si no existe.
func (r *OrderRepo) FindByID(ctx context.Context, id int64) (*entity.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// FindByNumber busca por número visible (índice único).
func (r *OrderRepo) FindByNumber(ctx context.Context, number string) (*entity.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE number = $1`, number)
}

func (r *OrderRepo) findOne(ctx context.Context, query string, arg any) (*entity.Order, error) {
	var o entity.Order
	var billing, shipping []byte
	var tin, idType, idValue *string
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&o.ID, &o.Number, &o.PaymentMethod, &billing, &shipping, &tin, &idType, &idValue, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if err := json.Unmarshal(billing, &o.Billing); err != nil {
		return nil, fmt.Errorf("order %d billing: %w", o.ID, err)
	}
	if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
		return nil, fmt.Errorf("order %d shipping: %w", o.ID, err)
	}
	o.Buyer = entity.BuyerTIN{TIN: deref(tin), IDType: deref(idType), IDValue: deref(idValue)}

	if err := r.loadLines(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepo) loadLines(ctx context.Context, o *entity.Order) error {
	rows, err := r.q.Query(ctx, `
		SELECT kind, product_id, name, quantity, total, tax
		FROM order_lines WHERE order_id = $1 ORDER BY position`, o.ID)
	if err != nil {
		return fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind, name string
		var productID *int64
		var qty, total, tax decimal.Decimal
		if err := rows.Scan(&kind, &productID, &name, &qty, &total, &tax); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		switch kind {
		case lineKindItem:
			item := entity.OrderItem{Name: name, Quantity: qty, Total: total, Tax: tax}
			if productID != nil {
				item.ProductID = *productID
			}
			o.Items = append(o.Items, item)
		case lineKindShipping:
			o.ShippingLines = append(o.ShippingLines, entity.OrderCharge{Name: name, Total: total, Tax: tax})
		case lineKindFee:
			o.FeeLines = append(o.FeeLines, entity.OrderCharge{Name: name, Total: total, Tax: tax})
		}
	}
	return rows.Err()
}

// Save inserta o reemplaza el pedido con todas sus líneas.
func (r *OrderRepo) Save(ctx context.Context, o *entity.Order) error {
	billing, err := json.Marshal(o.Billing)
	if err != nil {
		return fmt.Errorf("order billing: %w", err)
	}
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return fmt.Errorf("order shipping: %w", err)
	}

	return inTx(ctx, r.q, func(q Querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO orders (id, number, payment_method, billing, shipping, buyer_tin, buyer_id_type, buyer_id_value, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE
			SET number = EXCLUDED.number, payment_method = EXCLUDED.payment_method,
			    billing = EXCLUDED.billing, shipping = EXCLUDED.shipping,
			    buyer_tin = EXCLUDED.buyer_tin, buyer_id_type = EXCLUDED.buyer_id_type,
			    buyer_id_value = EXCLUDED.buyer_id_value`,
			o.ID, o.Number, o.PaymentMethod, billing, shipping,
			nullIfEmpty(o.Buyer.TIN), nullIfEmpty(o.Buyer.IDType), nullIfEmpty(o.Buyer.IDValue), o.CreatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("order number %s already exists: %w", o.Number, err)
			}
			return fmt.Errorf("upsert order: %w", err)
		}
		if _, err := q.Exec(ctx, `DELETE FROM order_lines WHERE order_id = $1`, o.ID); err != nil {
			return fmt.Errorf("delete order lines: %w", err)
		}

		pos := 0
		insert := func(kind string, productID int64, name string, qty, total, tax decimal.Decimal) error {
			pos++
			_, err := q.Exec(ctx, `
				INSERT INTO order_lines (order_id, position, kind, product_id, name, quantity, total, tax)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				o.ID, pos, kind, nullIfZero(productID), name, qty, total, tax)
			if err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}
			return nil
		}
		for _, it := range o.Items {
			if err := insert(lineKindItem, it.ProductID, it.Name, it.Quantity, it.Total, it.Tax); err != nil {
				return err
			}
		}
		for _, c := range o.ShippingLines {
			if err := insert(lineKindShipping, 0, c.Name, decimal.NewFromInt(1), c.Total, c.Tax); err != nil {
				return err
			}
		}
		for _, c := range o.FeeLines {
			if err := insert(lineKindFee, 0, c.Name, decimal.NewFromInt(1), c.Total, c.Tax); err != nil {
				return err
			}
		}
		return nil
	})
}
