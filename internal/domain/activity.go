package domain

// Category groups activities that share a fireteam size.
type Category string

const (
	CategoryRaid    Category = "raid"
	CategoryDungeon Category = "dungeon"
	CategoryExotic  Category = "exotic"
)

// Capacity is the fireteam size implied by the category.
func (c Category) Capacity() int {
	switch c {
	case CategoryRaid:
		return 6
	case CategoryDungeon, CategoryExotic:
		return 3
	}
	return 6
}

func (c Category) Label() string {
	switch c {
	case CategoryRaid:
		return "Raid"
	case CategoryDungeon:
		return "Dungeon"
	case CategoryExotic:
		return "Exotic"
	}
	return "Activity"
}

// Activity is one entry of the preset catalog. Loaded once at startup,
// never mutated.
type Activity struct {
	Name      string
	Category  Category
	ImagePath string // optional; empty when no asset is configured
}

func (a Activity) Capacity() int { return a.Category.Capacity() }
