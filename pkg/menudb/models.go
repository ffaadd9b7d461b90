package menudb

import "github.com/uptrace/bun"

// MenuItem is one row of the restaurant's own menu.
type MenuItem struct {
	bun.BaseModel `bun:"table:menu"`

	ID          int64   `bun:"id,pk,autoincrement" json:"id"`
	Name        string  `bun:"name,notnull" json:"name"`
	Category    string  `bun:"category,notnull" json:"category"`
	Price       float64 `bun:"price,notnull" json:"price"`
	Ingredients string  `bun:"ingredients" json:"ingredients"`

	Nutrition *NutritionFacts `bun:"rel:has-one,join:id=item_id" json:"nutrition,omitempty"`
}

// NutritionFacts holds per-item nutrition, one row per menu item.
type NutritionFacts struct {
	bun.BaseModel `bun:"table:nutrition_facts"`

	ItemID   int64   `bun:"item_id,pk" json:"item_id"`
	Calories int     `bun:"calories" json:"calories"`
	ProteinG float64 `bun:"protein_g" json:"protein_g"`
	FatG     float64 `bun:"fat_g" json:"fat_g"`
	CarbsG   float64 `bun:"carbs_g" json:"carbs_g"`
	SodiumMG int     `bun:"sodium_mg" json:"sodium_mg"`
}
