package model

// Category groups tasks by area of life.
type Category string

const (
	CategoryWork     Category = "work"
	CategoryPersonal Category = "personal"
	CategorySchool   Category = "school"
	CategoryHealth   Category = "health"
	CategoryOther    Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryWork,
	CategoryPersonal,
	CategorySchool,
	CategoryHealth,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Label returns the Turkish display name used in chat.
func (c Category) Label() string {
	switch c {
	case CategoryWork:
		return "İş"
	case CategoryPersonal:
		return "Kişisel"
	case CategorySchool:
		return "Okul"
	case CategoryHealth:
		return "Sağlık"
	default:
		return "Diğer"
	}
}

// Icon returns the emoji shown next to the category label.
func (c Category) Icon() string {
	switch c {
	case CategoryWork:
		return "💼"
	case CategoryPersonal:
		return "🧩"
	case CategorySchool:
		return "🎓"
	case CategoryHealth:
		return "🩺"
	default:
		return "📁"
	}
}

// ParseCategory maps user input (English key or Turkish label) to a category.
func ParseCategory(raw string) (Category, bool) {
	for _, c := range Categories {
		if equalFold(raw, string(c)) || equalFold(raw, c.Label()) || equalFold(raw, c.Icon()+" "+c.Label()) {
			return c, true
		}
	}
	return "", false
}
