package menudb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
)

type menuRecord struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Ingredients string  `json:"ingredients"`
	Nutrition   struct {
		Calories int     `json:"calories"`
		ProteinG float64 `json:"protein_g"`
		FatG     float64 `json:"fat_g"`
		CarbsG   float64 `json:"carbs_g"`
		SodiumMG int     `json:"sodium_mg"`
	} `json:"nutrition"`
}

// Seed recreates the menu tables and populates them from a JSON file. It is
// destructive and intended for startup only.
func (d *DB) Seed(ctx context.Context, jsonPath string) error {
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("read menu json: %w", err)
	}

	var records []menuRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return fmt.Errorf("parse menu json: %w", err)
	}

	if _, err := d.bun.NewDropTable().Model((*NutritionFacts)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("drop nutrition_facts: %w", err)
	}
	if _, err := d.bun.NewDropTable().Model((*MenuItem)(nil)).IfExists().Exec(ctx); err != nil {
		return fmt.Errorf("drop menu: %w", err)
	}
	if _, err := d.bun.NewCreateTable().Model((*MenuItem)(nil)).Exec(ctx); err != nil {
		return fmt.Errorf("create menu: %w", err)
	}
	if _, err := d.bun.NewCreateTable().Model((*NutritionFacts)(nil)).
		ForeignKey(`(item_id) REFERENCES menu (id)`).Exec(ctx); err != nil {
		return fmt.Errorf("create nutrition_facts: %w", err)
	}

	for _, rec := range records {
		item := &MenuItem{
			Name:        rec.Name,
			Category:    rec.Category,
			Price:       rec.Price,
			Ingredients: rec.Ingredients,
		}
		if _, err := d.bun.NewInsert().Model(item).Exec(ctx); err != nil {
			return fmt.Errorf("insert menu item %q: %w", rec.Name, err)
		}

		facts := &NutritionFacts{
			ItemID:   item.ID,
			Calories: rec.Nutrition.Calories,
			ProteinG: rec.Nutrition.ProteinG,
			FatG:     rec.Nutrition.FatG,
			CarbsG:   rec.Nutrition.CarbsG,
			SodiumMG: rec.Nutrition.SodiumMG,
		}
		if _, err := d.bun.NewInsert().Model(facts).Exec(ctx); err != nil {
			return fmt.Errorf("insert nutrition for %q: %w", rec.Name, err)
		}
	}

	log.Info().Int("items", len(records)).Str("source", jsonPath).Msg("menu database seeded")
	return nil
}
