package repository

import (
	"context"
	"time"

	"healing-commerce/internal/model"

	"gorm.io/gorm"
)

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByCode(ctx context.Context, orderCode int64) (*model.Order, error)
	// MarkPaid transitions PENDING -> PAID and sets paid_at. Calling it on an
	// order already PAID or COMPLETED is a no-op success; the status never
	// moves backward.
	MarkPaid(ctx context.Context, orderCode int64, manual bool) (*model.Order, error)
	UpdatePaymentLink(ctx context.Context, orderCode int64, paymentLinkID string) error

	Recent(ctx context.Context, limit int) ([]*model.Order, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{db: db}
}

func (r *orderRepoImpl) Create(ctx context.Context, order *model.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByCode(ctx context.Context, orderCode int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).
		Where("order_code = ?", orderCode).
		First(&order).Error

	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepoImpl) MarkPaid(ctx context.Context, orderCode int64, manual bool) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		updates := map[string]interface{}{
			"status":  model.StatusPaid,
			"paid_at": now,
		}
		if manual {
			updates["manually_processed"] = true
		}

		result := tx.Model(&model.Order{}).
			Where("order_code = ? AND status = ?", orderCode, model.StatusPending).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}

		// RowsAffected == 0 means either the order is missing or already
		// terminal. The fetch below distinguishes the two.
		return tx.Where("order_code = ?", orderCode).First(&order).Error
	})

	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepoImpl) UpdatePaymentLink(ctx context.Context, orderCode int64, paymentLinkID string) error {
	return r.db.WithContext(ctx).Model(&model.Order{}).
		Where("order_code = ?", orderCode).
		Update("payment_link_id", paymentLinkID).Error
}

func (r *orderRepoImpl) Recent(ctx context.Context, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error

	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepoImpl) CountByStatus(ctx context.Context) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	err := r.db.WithContext(ctx).Model(&model.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
