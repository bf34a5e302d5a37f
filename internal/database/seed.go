package database

import (
	"fmt"

	"maitred/internal/models"

	"github.com/jinzhu/gorm"
	"github.com/shopspring/decimal"
)

// DemoTenantID is the tenant created by SeedDemo
const DemoTenantID = "demo"

// SeedDemo ensures a small demo menu exists. It is a no-op when the tenant is present.
func SeedDemo(db *gorm.DB) error {
	var count int
	if err := db.Model(&models.Tenant{}).Where("id = ?", DemoTenantID).Count(&count).Error; err != nil {
		return fmt.Errorf("check demo tenant: %w", err)
	}
	if count > 0 {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		tenant := models.Tenant{ID: DemoTenantID, Name: "Demo Döner House", MenuVersion: 1}
		if err := tx.Create(&tenant).Error; err != nil {
			return fmt.Errorf("create demo tenant: %w", err)
		}

		items := []models.MenuItem{
			{ID: "tavuk-doner", Name: "Tavuk Döner", Category: string(models.MenuCategoryMain), Price: decimal.NewFromInt(45)},
			{ID: "et-doner", Name: "Et Döner", Category: string(models.MenuCategoryMain), Price: decimal.NewFromInt(60)},
			{ID: "iskender", Name: "İskender", Category: string(models.MenuCategoryMain), Price: decimal.NewFromInt(90)},
			{ID: "patates", Name: "Patates Kızartması", Category: string(models.MenuCategorySide), Price: decimal.NewFromInt(20)},
			{ID: "ayran", Name: "Ayran", Category: string(models.MenuCategoryBeverage), Price: decimal.NewFromInt(5)},
			{ID: "kola", Name: "Kola", Category: string(models.MenuCategoryBeverage), Price: decimal.NewFromInt(10)},
			{ID: "baklava", Name: "Baklava", Category: string(models.MenuCategoryDessert), Price: decimal.NewFromInt(30)},
		}
		for i := range items {
			items[i].TenantID = DemoTenantID
			items[i].Active = true
			if err := models.ValidateMenuItem(&items[i]); err != nil {
				return err
			}
			if err := tx.Create(&items[i]).Error; err != nil {
				return fmt.Errorf("create menu item %s: %w", items[i].ID, err)
			}
		}

		synonyms := []models.MenuSynonym{
			{MenuItemID: "ayran", Phrase: "ayran", Weight: 1},
			{MenuItemID: "tavuk-doner", Phrase: "tavuk dürüm", Weight: 0.8},
			{MenuItemID: "patates", Phrase: "patates", Weight: 0.9},
			{MenuItemID: "patates", Phrase: "cips", Weight: 0.6},
			{MenuItemID: "kola", Phrase: "coca cola", Weight: 0.9},
		}
		for i := range synonyms {
			synonyms[i].TenantID = DemoTenantID
			if err := tx.Create(&synonyms[i]).Error; err != nil {
				return fmt.Errorf("create synonym %q: %w", synonyms[i].Phrase, err)
			}
		}

		portion := models.OptionGroup{
			ID: "et-doner-portion", TenantID: DemoTenantID, MenuItemID: "et-doner",
			Name: "Porsiyon", Required: true, MaxSelect: 1,
			Options: []models.MenuOption{
				{ID: "yarim", TenantID: DemoTenantID, Name: "Yarım", PriceDelta: decimal.Zero, Active: true, Position: 0},
				{ID: "tam", TenantID: DemoTenantID, Name: "Tam", PriceDelta: decimal.NewFromInt(20), Active: true, Position: 1},
			},
		}
		sauces := models.OptionGroup{
			ID: "tavuk-doner-sauce", TenantID: DemoTenantID, MenuItemID: "tavuk-doner",
			Name: "Sos", MaxSelect: 2, Position: 1,
			Options: []models.MenuOption{
				{ID: "aci-sos", TenantID: DemoTenantID, Name: "Acı Sos", Active: true, Position: 0},
				{ID: "sarimsakli", TenantID: DemoTenantID, Name: "Sarımsaklı", Active: true, Position: 1},
				{ID: "bbq", TenantID: DemoTenantID, Name: "Barbekü", PriceDelta: decimal.NewFromInt(3), Active: true, Position: 2},
			},
		}
		for _, g := range []*models.OptionGroup{&portion, &sauces} {
			if err := tx.Create(g).Error; err != nil {
				return fmt.Errorf("create option group %s: %w", g.ID, err)
			}
		}

		rules := []models.CrossSellRule{
			{TriggerItemID: "tavuk-doner", SuggestItemID: "ayran", Priority: 10},
			{TriggerItemID: "et-doner", SuggestItemID: "ayran", Priority: 10},
			{TriggerItemID: "iskender", SuggestItemID: "baklava", Priority: 5},
		}
		for i := range rules {
			rules[i].TenantID = DemoTenantID
			rules[i].Active = true
			if err := tx.Create(&rules[i]).Error; err != nil {
				return fmt.Errorf("create cross-sell rule: %w", err)
			}
		}
		return nil
	})
}
