package domain

const (
	CategoryAll   = "All"
	CategoryOther = "Other"
)

// Categories is the fixed listing enumeration, "Other" excluded.
var Categories = []string{
	"Vegetables",
	"Fruits",
	"Grains",
	"Tubers",
	"Dairy",
	"Poultry",
	"Livestock",
	"Spices",
}

// ProductRecord is a product document as stored remotely. Every field may be
// missing; defaults are applied when it is turned into a Product.
type ProductRecord struct {
	ID                string  `bson:"_id" json:"id"`
	Name              string  `bson:"name" json:"name"`
	Price             float64 `bson:"price" json:"price"`
	Unit              string  `bson:"unit" json:"unit"`
	OwnerID           string  `bson:"ownerId" json:"ownerId"`
	OwnerName         string  `bson:"ownerName,omitempty" json:"ownerName,omitempty"`
	Location          string  `bson:"location,omitempty" json:"location,omitempty"`
	Category          string  `bson:"category,omitempty" json:"category,omitempty"`
	Description       string  `bson:"description,omitempty" json:"description,omitempty"`
	ImageRef          string  `bson:"image,omitempty" json:"image,omitempty"`
	QuantityAvailable int     `bson:"quantity" json:"quantity"`
	Verified          bool    `bson:"verified" json:"verified"`
	Rating            float64 `bson:"rating,omitempty" json:"rating,omitempty"`
}

type Product struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Price             float64 `json:"price"`
	Unit              string  `json:"unit"`
	OwnerID           string  `json:"ownerId"`
	OwnerName         string  `json:"ownerName"`
	Location          string  `json:"location"`
	Category          string  `json:"category"`
	Description       string  `json:"description"`
	ImageRef          string  `json:"image"`
	QuantityAvailable int     `json:"quantityAvailable"`
	Verified          bool    `json:"verified"`
	Rating            float64 `json:"rating"`
}

func (p Product) InStock() bool {
	return p.QuantityAvailable > 0
}

func IsKnownCategory(c string) bool {
	if c == CategoryOther {
		return true
	}
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
