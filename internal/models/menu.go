package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

// Tenant is a restaurant brand with its own published menu
type Tenant struct {
	ID          string `gorm:"primary_key"`
	Name        string
	MenuVersion int `gorm:"not null;default:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MenuItem represents a dish on the tenant's published menu.
// Ids are chosen by the tenant, so the key is (tenant_id, id).
type MenuItem struct {
	TenantID    string `gorm:"primary_key"`
	ID          string `gorm:"primary_key"`
	Name        string `gorm:"not null"`
	Description string
	Category    string
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Active      bool            `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// MenuSynonym is a tenant-authored phrase customers use for a menu item
type MenuSynonym struct {
	gorm.Model
	TenantID   string  `gorm:"index:idx_menu_synonyms_tenant;not null"`
	MenuItemID string  `gorm:"not null"`
	Phrase     string  `gorm:"not null"`
	Weight     float64 `gorm:"not null;default:1"`
}

// OptionGroup is a set of choices that applies to one menu item (size, sauce, ...)
type OptionGroup struct {
	TenantID   string       `gorm:"primary_key"`
	ID         string       `gorm:"primary_key"`
	MenuItemID string       `gorm:"index:idx_option_groups_item;not null"`
	Name       string       `gorm:"not null"`
	Required   bool         `gorm:"not null;default:false"`
	MaxSelect  int          `gorm:"not null;default:0"`
	Position   int          `gorm:"not null;default:0"`
	Options    []MenuOption `gorm:"foreignkey:GroupID;association_foreignkey:ID"`
}

// MenuOption is one choice inside an option group
type MenuOption struct {
	TenantID   string          `gorm:"primary_key"`
	ID         string          `gorm:"primary_key"`
	GroupID    string          `gorm:"index:idx_menu_options_group;not null"`
	Name       string          `gorm:"not null"`
	PriceDelta decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	Active     bool            `gorm:"not null"`
	Position   int             `gorm:"not null;default:0"`
}

// CrossSellRule suggests SuggestItemID whenever TriggerItemID is ordered
type CrossSellRule struct {
	gorm.Model
	TenantID      string `gorm:"index:idx_cross_sell_tenant;not null"`
	TriggerItemID string `gorm:"not null"`
	SuggestItemID string `gorm:"not null"`
	Priority      int    `gorm:"not null;default:0"`
	Active        bool   `gorm:"not null"`
}

// MenuCategory represents the category of a menu item
type MenuCategory string

const (
	MenuCategoryStarter  MenuCategory = "starter"
	MenuCategoryMain     MenuCategory = "main"
	MenuCategorySide     MenuCategory = "side"
	MenuCategoryDessert  MenuCategory = "dessert"
	MenuCategoryBeverage MenuCategory = "beverage"
)

// ValidateMenuItem validates a menu item
func ValidateMenuItem(item *MenuItem) error {
	if item.ID == "" {
		return fmt.Errorf("menu item id is required")
	}
	if item.TenantID == "" {
		return fmt.Errorf("menu item %s: tenant is required", item.ID)
	}
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("menu item %s: name is required", item.ID)
	}
	if !item.Price.IsPositive() {
		return fmt.Errorf("menu item %s: price must be greater than 0", item.ID)
	}
	return nil
}

// OptionByID returns the active option with the given id
func (g *OptionGroup) OptionByID(id string) (MenuOption, bool) {
	for _, o := range g.Options {
		if o.ID == id && o.Active {
			return o, true
		}
	}
	return MenuOption{}, false
}
