package repository

import (
	"context"
	"strings"
	"time"

	"healing-commerce/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntitlementRepository stores the append-only purchases map of accounts and
// the email-keyed pre-authorization records used when no account id was known
// at payment time. Grants are set-to-true: re-granting an existing key is a
// no-op, which makes concurrent duplicate confirmations safe without locking.
type EntitlementRepository interface {
	Grant(ctx context.Context, uid string, keys []string) error
	GrantByEmail(ctx context.Context, email string, keys []string) error

	PurchasesByUID(ctx context.Context, uid string) (map[string]bool, error)
	AccountEmail(ctx context.Context, uid string) (string, error)
	PreauthorizedByEmail(ctx context.Context, email string) (map[string]bool, error)

	// ClaimPreauthorized moves pending email-keyed grants onto an account and
	// removes the pre-authorization rows, in one transaction.
	ClaimPreauthorized(ctx context.Context, uid, email string) (int, error)
}

type entitlementRepoImpl struct {
	db *gorm.DB
}

func NewEntitlementRepository(db *gorm.DB) EntitlementRepository {
	return &entitlementRepoImpl{db: db}
}

func (r *entitlementRepoImpl) Grant(ctx context.Context, uid string, keys []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Ensure the account row exists. Re-creating is harmless: the created
		// shape carries no entitlements, so a concurrent double-create
		// converges to the same state.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.UserAccount{UID: uid}).Error; err != nil {
			return err
		}

		for _, key := range keys {
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.AccountEntitlement{
					UID:       uid,
					Key:       key,
					CreatedAt: time.Now(),
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *entitlementRepoImpl) GrantByEmail(ctx context.Context, email string, keys []string) error {
	email = strings.ToLower(email)

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range keys {
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.PreauthorizedEntitlement{
					Email:     email,
					Key:       key,
					CreatedAt: time.Now(),
				}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *entitlementRepoImpl) PurchasesByUID(ctx context.Context, uid string) (map[string]bool, error) {
	var rows []model.AccountEntitlement
	err := r.db.WithContext(ctx).
		Where("uid = ?", uid).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	purchases := make(map[string]bool, len(rows))
	for _, row := range rows {
		purchases[row.Key] = true
	}
	return purchases, nil
}

func (r *entitlementRepoImpl) AccountEmail(ctx context.Context, uid string) (string, error) {
	var account model.UserAccount
	err := r.db.WithContext(ctx).
		Where("uid = ?", uid).
		First(&account).Error
	if err != nil {
		return "", err
	}
	return account.Email, nil
}

func (r *entitlementRepoImpl) PreauthorizedByEmail(ctx context.Context, email string) (map[string]bool, error) {
	var rows []model.PreauthorizedEntitlement
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	purchases := make(map[string]bool, len(rows))
	for _, row := range rows {
		purchases[row.Key] = true
	}
	return purchases, nil
}

func (r *entitlementRepoImpl) ClaimPreauthorized(ctx context.Context, uid, email string) (int, error) {
	email = strings.ToLower(email)
	claimed := 0

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []model.PreauthorizedEntitlement
		if err := tx.Where("email = ?", email).Find(&pending).Error; err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.UserAccount{UID: uid, Email: email}).Error; err != nil {
			return err
		}

		for _, row := range pending {
			err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.AccountEntitlement{
					UID:       uid,
					Key:       row.Key,
					CreatedAt: time.Now(),
				}).Error
			if err != nil {
				return err
			}
		}

		claimed = len(pending)
		return tx.Where("email = ?", email).
			Delete(&model.PreauthorizedEntitlement{}).Error
	})

	return claimed, err
}
