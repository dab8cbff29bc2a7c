// Package economy moves value between users: gifts, star conversion, agency referrals and charity.
package economy

import (
	"github.com/shopspring/decimal"

	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
)

// Gift is one purchasable catalog item.
type Gift struct {
	GiftID    string          `json:"gift_id"`
	Name      string          `json:"name"`
	Emoji     string          `json:"emoji"`
	Price     decimal.Decimal `json:"price"`
	Category  string          `json:"category"`
	Animation string          `json:"animation"`
	Exclusive bool            `json:"exclusive,omitempty"`
}

// Catalog is the immutable gift table.
type Catalog struct {
	categories []string
	byCategory map[string][]Gift
	byID       map[string]Gift
}

func gift(id, name, emoji string, price int64, category, animation string) Gift {
	return Gift{
		GiftID:    id,
		Name:      name,
		Emoji:     emoji,
		Price:     decimal.NewFromInt(price),
		Category:  category,
		Animation: animation,
		Exclusive: category == "signature",
	}
}

var defaultCatalog = NewCatalog([]string{"basic", "premium", "signature", "special"}, []Gift{
	gift("rose", "Red Rose", "rose", 10, "basic", "float"),
	gift("heart", "Love Heart", "heart", 20, "basic", "pulse"),
	gift("star", "Shining Star", "star", 30, "basic", "sparkle"),
	gift("coffee", "Hot Coffee", "coffee", 15, "basic", "steam"),
	gift("kiss", "Flying Kiss", "kiss", 25, "basic", "fly"),

	gift("diamond_ring", "Diamond Ring", "ring", 500, "premium", "shine"),
	gift("gold_crown", "Royal Crown", "crown", 1000, "premium", "glow"),
	gift("sports_car", "Sports Car", "car", 2000, "premium", "drive"),
	gift("private_jet", "Private Jet", "airplane", 5000, "premium", "takeoff"),
	gift("yacht", "Luxury Yacht", "boat", 8000, "premium", "wave"),

	gift("mugaddas_star", "Mugaddas Star", "sparkles", 10000, "signature", "supernova"),
	gift("golden_palace", "Golden Palace", "castle", 25000, "signature", "build"),
	gift("universe", "Gift of Universe", "galaxy", 50000, "signature", "cosmic"),
	gift("eternal_love", "Eternal Love", "infinity", 100000, "signature", "eternal"),

	gift("birthday_cake", "Birthday Cake", "cake", 100, "special", "candles"),
	gift("fireworks", "Fireworks", "fireworks", 200, "special", "explode"),
	gift("trophy", "Winner Trophy", "trophy", 300, "special", "shine"),
	gift("lucky_charm", "Lucky Charm", "clover", 88, "special", "lucky"),
})

// DefaultCatalog returns the built-in gift table.
func DefaultCatalog() *Catalog { return defaultCatalog }

// NewCatalog indexes gifts. Gifts whose category is not listed are ignored.
func NewCatalog(categories []string, gifts []Gift) *Catalog {
	c := &Catalog{
		categories: append([]string(nil), categories...),
		byCategory: make(map[string][]Gift, len(categories)),
		byID:       make(map[string]Gift, len(gifts)),
	}
	for _, cat := range categories {
		c.byCategory[cat] = []Gift{}
	}
	for _, g := range gifts {
		if _, ok := c.byCategory[g.Category]; !ok {
			continue
		}
		c.byCategory[g.Category] = append(c.byCategory[g.Category], g)
		c.byID[g.GiftID] = g
	}
	return c
}

// Lookup finds a gift by id in any category.
func (c *Catalog) Lookup(id string) (Gift, error) {
	g, ok := c.byID[id]
	if !ok {
		return Gift{}, apperrors.Wrap(apperrors.ErrGiftNotFound, "%s", id)
	}
	return g, nil
}

// ByCategory returns a copy of the catalog grouped by category.
func (c *Catalog) ByCategory() map[string][]Gift {
	out := make(map[string][]Gift, len(c.byCategory))
	for cat, gifts := range c.byCategory {
		out[cat] = append([]Gift(nil), gifts...)
	}
	return out
}

// Categories lists category names in display order.
func (c *Catalog) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Len is the number of gifts in the catalog.
func (c *Catalog) Len() int { return len(c.byID) }
