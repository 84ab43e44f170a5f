package catalog

import (
	"context"
	"strings"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/remote"
	"github.com/fjod/agromarket/internal/repository"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotFarmer      = errors.New("only farmers can list products")
	ErrInvalidProduct = errors.New("invalid product")
)

// Writer is the subset of the remote write primitive a listing needs.
type Writer interface {
	Create(ctx context.Context, collection, id string, fields map[string]interface{}) (string, error)
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
}

type NewProduct struct {
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Unit        string  `json:"unit"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	ImageRef    string  `json:"image"`
	Quantity    int     `json:"quantity"`
}

func (p NewProduct) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.Wrap(ErrInvalidProduct, "name is required")
	}
	if p.Price < 0 {
		return errors.Wrap(ErrInvalidProduct, "price must not be negative")
	}
	if p.Quantity < 0 {
		return errors.Wrap(ErrInvalidProduct, "quantity must not be negative")
	}
	if p.Category != "" && !domain.IsKnownCategory(p.Category) {
		return errors.Wrapf(ErrInvalidProduct, "unknown category %q", p.Category)
	}
	return nil
}

// Listing creates products on behalf of farmers.
type Listing struct {
	writer          Writer
	defaultLocation string
	log             logrus.FieldLogger
}

func NewListing(writer Writer, defaultLocation string, log logrus.FieldLogger) *Listing {
	return &Listing{writer: writer, defaultLocation: defaultLocation, log: log}
}

// AddProduct stores an unverified product for owner and bumps the owner's
// product counter. It returns the new product id.
func (l *Listing) AddProduct(ctx context.Context, owner *domain.Session, p NewProduct) (string, error) {
	if owner == nil || owner.Role != domain.RoleFarmer {
		return "", ErrNotFarmer
	}
	if err := p.validate(); err != nil {
		return "", err
	}

	ownerName := owner.FarmName
	if ownerName == "" {
		ownerName = UnknownOwner
	}
	location := owner.Location
	if location == "" {
		location = l.defaultLocation
	}
	category := p.Category
	if category == "" {
		category = domain.CategoryOther
	}

	id, err := l.writer.Create(ctx, remote.Products, "", map[string]interface{}{
		"name":        strings.TrimSpace(p.Name),
		"price":       p.Price,
		"unit":        p.Unit,
		"category":    category,
		"description": p.Description,
		"image":       p.ImageRef,
		"quantity":    p.Quantity,
		"ownerId":     owner.ID,
		"ownerName":   ownerName,
		"location":    location,
		"verified":    false,
		"rating":      owner.Rating,
	})
	if err != nil {
		return "", err
	}

	err = l.writer.Update(ctx, remote.Profiles, owner.ID, map[string]interface{}{
		"totalProducts": repository.Increment{By: 1},
	})
	if err != nil {
		return id, err
	}

	l.log.WithFields(logrus.Fields{
		"product_id": id,
		"owner_id":   owner.ID,
	}).Info("product listed")
	return id, nil
}
