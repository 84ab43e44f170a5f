package domain

type CartLineItem struct {
	ProductID  string  `json:"productId"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unitPrice"`
	Unit       string  `json:"unit"`
	FarmerName string  `json:"farmerName"`
	ImageRef   string  `json:"imageRef"`
	Quantity   int     `json:"quantity"`
}

func (i CartLineItem) Subtotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

type Totals struct {
	Subtotal      float64 `json:"subtotal"`
	CommissionFee float64 `json:"commissionFee"`
	Total         float64 `json:"total"`
}

// ComputeTotals derives the totals of the given line items.
func ComputeTotals(items []CartLineItem, commissionRate float64) Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += item.Subtotal()
	}
	fee := subtotal * commissionRate
	return Totals{
		Subtotal:      subtotal,
		CommissionFee: fee,
		Total:         subtotal + fee,
	}
}
