package domain

type Role string

const (
	RoleFarmer    Role = "farmer"
	RoleHousehold Role = "household"
	RoleBusiness  Role = "business"
)

func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleHousehold || r == RoleBusiness
}

// IsBuyer reports whether the role shops on the marketplace.
func (r Role) IsBuyer() bool {
	return r == RoleHousehold || r == RoleBusiness
}

// Session is the signed-in user's profile record.
type Session struct {
	ID          string  `bson:"_id" json:"id"`
	Name        string  `bson:"name" json:"name"`
	Email       string  `bson:"email" json:"email"`
	Role        Role    `bson:"role" json:"role"`
	Location    string  `bson:"location" json:"location"`
	Phone       string  `bson:"phone,omitempty" json:"phone,omitempty"`
	FarmName    string  `bson:"farmName,omitempty" json:"farmName,omitempty"`
	CompanyName string  `bson:"companyName,omitempty" json:"companyName,omitempty"`
	Rating      float64 `bson:"rating" json:"rating"`
	Verified    bool    `bson:"verified" json:"verified"`
	AccountType string  `bson:"accountType" json:"accountType"`
	MemberSince string  `bson:"memberSince" json:"memberSince"`

	// farmer counters
	TotalProducts int     `bson:"totalProducts,omitempty" json:"totalProducts,omitempty"`
	MonthlySales  float64 `bson:"monthlySales,omitempty" json:"monthlySales,omitempty"`
	ActiveOrders  int     `bson:"activeOrders,omitempty" json:"activeOrders,omitempty"`

	// buyer counters
	OrdersPlaced    int     `bson:"ordersPlaced,omitempty" json:"ordersPlaced,omitempty"`
	FavoriteFarmers int     `bson:"favoriteFarmers,omitempty" json:"favoriteFarmers,omitempty"`
	TotalSpent      float64 `bson:"totalSpent,omitempty" json:"totalSpent,omitempty"`
}

// DisplayName is the name shown on the farmer's listings.
func (s *Session) DisplayName() string {
	if s.FarmName != "" {
		return s.FarmName
	}
	return s.Name
}
