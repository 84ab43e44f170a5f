package identity

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/fjod/agromarket/internal/domain"
	"github.com/fjod/agromarket/internal/remote"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	AccountFreemium   = "freemium"
	memberSinceLayout = "02 Jan 2006"
	minPasswordLength = 6
)

var ErrInvalidRegistration = errors.New("invalid registration")

// RecordStore is the subset of the remote write primitive identity uses.
type RecordStore interface {
	Create(ctx context.Context, collection, id string, fields map[string]interface{}) (string, error)
	Write(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Get(ctx context.Context, collection, id string, out interface{}) error
}

// PrincipalBinder records which principal is signed in on a client.
type PrincipalBinder interface {
	Bind(ctx context.Context, clientID, principalID string) error
	Clear(ctx context.Context, clientID string) error
}

type RegisterRequest struct {
	Name        string      `json:"name"`
	Email       string      `json:"email"`
	Password    string      `json:"password"`
	Role        domain.Role `json:"role"`
	Location    string      `json:"location"`
	Phone       string      `json:"phone"`
	FarmName    string      `json:"farmName,omitempty"`
	CompanyName string      `json:"companyName,omitempty"`
}

func (r *RegisterRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.Wrap(ErrInvalidRegistration, "name is required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil {
		return errors.Wrap(ErrInvalidRegistration, "invalid email")
	}
	if len(r.Password) < minPasswordLength {
		return errors.Wrapf(ErrInvalidRegistration, "password must be at least %d characters", minPasswordLength)
	}
	if !r.Role.Valid() {
		return errors.Wrapf(ErrInvalidRegistration, "unknown role %q", r.Role)
	}
	return nil
}

type credential struct {
	Email       string `bson:"_id"`
	Hash        string `bson:"hash"`
	PrincipalID string `bson:"principalId"`
}

type Options struct {
	RegistrationRating float64
	BcryptCost         int
}

type Service struct {
	store      RecordStore
	principals PrincipalBinder
	opts       Options
	now        func() time.Time
	log        logrus.FieldLogger
}

func NewService(store RecordStore, principals PrincipalBinder, opts Options, log logrus.FieldLogger) *Service {
	if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		store:      store,
		principals: principals,
		opts:       opts,
		now:        time.Now,
		log:        log,
	}
}

// Register creates the account and its profile, then signs it in on
// clientID. It returns the new principal id.
func (s *Service) Register(ctx context.Context, clientID string, req RegisterRequest) (string, error) {
	req.Email = normalizeEmail(req.Email)
	if err := req.validate(); err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.opts.BcryptCost)
	if err != nil {
		return "", errors.Wrap(err, "failed to hash password")
	}
	principalID := uuid.New().String()

	_, err = s.store.Create(ctx, remote.Credentials, req.Email, map[string]interface{}{
		"hash":        string(hash),
		"principalId": principalID,
	})
	if err != nil {
		return "", err
	}

	if err := s.store.Write(ctx, remote.Profiles, principalID, s.profileFields(req)); err != nil {
		return "", err
	}
	if err := s.principals.Bind(ctx, clientID, principalID); err != nil {
		return "", errors.Wrap(err, "failed to sign in")
	}

	s.log.WithFields(logrus.Fields{
		"principal_id": principalID,
		"role":         req.Role,
	}).Info("account registered")
	return principalID, nil
}

func (s *Service) profileFields(req RegisterRequest) map[string]interface{} {
	fields := map[string]interface{}{
		"name":        strings.TrimSpace(req.Name),
		"email":       req.Email,
		"role":        string(req.Role),
		"location":    req.Location,
		"phone":       req.Phone,
		"rating":      s.opts.RegistrationRating,
		"verified":    false,
		"accountType": AccountFreemium,
		"memberSince": s.now().Format(memberSinceLayout),
	}
	if req.Role == domain.RoleFarmer {
		fields["farmName"] = req.FarmName
		fields["totalProducts"] = 0
		fields["monthlySales"] = 0
		fields["activeOrders"] = 0
	} else {
		if req.CompanyName != "" {
			fields["companyName"] = req.CompanyName
		}
		fields["ordersPlaced"] = 0
		fields["favoriteFarmers"] = 0
		fields["totalSpent"] = 0
	}
	return fields
}

// SignIn checks the password and signs the principal in on clientID.
func (s *Service) SignIn(ctx context.Context, clientID, email, password string) (string, error) {
	var cred credential
	if err := s.store.Get(ctx, remote.Credentials, normalizeEmail(email), &cred); err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.Hash), []byte(password)); err != nil {
		return "", domain.NewWriteError(domain.WriteInvalidCredential, "sign in", nil)
	}
	if err := s.principals.Bind(ctx, clientID, cred.PrincipalID); err != nil {
		return "", errors.Wrap(err, "failed to sign in")
	}

	s.log.WithField("principal_id", cred.PrincipalID).Info("signed in")
	return cred.PrincipalID, nil
}

func (s *Service) SignOut(ctx context.Context, clientID string) error {
	if err := s.principals.Clear(ctx, clientID); err != nil {
		return errors.Wrap(err, "failed to sign out")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
