package service

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"golang.org/x/crypto/bcrypt"
)

var tracer = otel.Tracer("service")

type PasswordService struct {
	cost int
}

// NewPasswordService returns a bcrypt hasher. A cost of zero selects bcrypt.DefaultCost.
func NewPasswordService(cost int) *PasswordService {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordService{cost: cost}
}

func (s *PasswordService) Hash(ctx context.Context, plaintext string) (string, error) {
	_, span := tracer.Start(ctx, "Password.Service.Hash")
	defer span.End()

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), s.cost)
	if err != nil {
		span.RecordError(errors.Wrap(err, "bcrypt failed"))
		return "", errors.Wrap(err, "bcrypt failed")
	}
	return string(hashed), nil
}

func (s *PasswordService) Compare(hashed, plaintext string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plaintext))
}
