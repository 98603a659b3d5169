package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/kendall-kelly/autoshop-crm-api/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// findInShop loads one row by id, restricted to the shop. A row belonging to
// another shop is indistinguishable from a missing one.
func findInShop(tx *gorm.DB, dest interface{}, shopID, id uint, resource string) error {
	err := tx.Where("shop_id = ? AND id = ?", shopID, id).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(resource, id)
	}
	if err != nil {
		return fmt.Errorf("failed to load %s %d: %w", resource, id, err)
	}
	return nil
}

// forUpdate takes a row lock where the database supports it. SQLite ignores
// the clause and serializes writers instead.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func loadShop(tx *gorm.DB, shopID uint) (*models.Shop, error) {
	var shop models.Shop
	err := tx.First(&shop, shopID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound("shop", shopID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load shop %d: %w", shopID, err)
	}
	return &shop, nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func uintPtr(v uint) *uint {
	return &v
}
