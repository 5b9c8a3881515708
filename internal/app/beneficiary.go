package app

import (
	"context"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/transfa/ledger-service/internal/domain"
)

func normalizeBeneficiaryInput(in domain.BeneficiaryInput) (domain.BeneficiaryInput, error) {
	in.BeneficiaryName = strings.TrimSpace(in.BeneficiaryName)
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	in.BankName = strings.TrimSpace(in.BankName)

	switch {
	case in.BeneficiaryName == "":
		return in, invalid("beneficiary_name is required")
	case len(in.BeneficiaryName) > maxNameLength:
		return in, invalid("beneficiary_name must not exceed 255 characters")
	case !domain.IsAccountNumber(in.AccountNumber):
		return in, invalid("account_number must be exactly 10 digits")
	case in.BankName == "":
		return in, invalid("bank_name is required")
	case len(in.BankName) > maxNameLength:
		return in, invalid("bank_name must not exceed 255 characters")
	}
	if err := domain.ValidateOptionalAmount(in.Amount); err != nil {
		return in, invalid(err.Error())
	}
	return in, nil
}

// CreateBeneficiary saves a payee in the caller's address book.
func (s *Service) CreateBeneficiary(ctx context.Context, accountID uuid.UUID, in domain.BeneficiaryInput) (*domain.Beneficiary, error) {
	in, err := normalizeBeneficiaryInput(in)
	if err != nil {
		return nil, err
	}
	beneficiary := &domain.Beneficiary{
		ID:              uuid.New(),
		AccountID:       accountID,
		BeneficiaryName: in.BeneficiaryName,
		AccountNumber:   in.AccountNumber,
		BankName:        in.BankName,
		Amount:          in.Amount,
	}
	if err := s.repo.CreateBeneficiary(ctx, beneficiary); err != nil {
		log.Printf("level=error component=beneficiary msg=\"create failed\" account_id=%s err=%v", accountID, err)
		return nil, operationFailed(err)
	}
	log.Printf("level=info component=beneficiary msg=\"beneficiary created\" account_id=%s beneficiary_id=%s", accountID, beneficiary.ID)
	return beneficiary, nil
}

// ListBeneficiaries returns the caller's beneficiaries, most recent first.
func (s *Service) ListBeneficiaries(ctx context.Context, accountID uuid.UUID) ([]domain.Beneficiary, error) {
	beneficiaries, err := s.repo.FindBeneficiariesByAccountID(ctx, accountID)
	if err != nil {
		return nil, operationFailed(err)
	}
	return beneficiaries, nil
}

func (s *Service) GetBeneficiary(ctx context.Context, accountID, beneficiaryID uuid.UUID) (*domain.Beneficiary, error) {
	beneficiary, err := s.repo.FindBeneficiaryByID(ctx, beneficiaryID, accountID)
	if err != nil {
		return nil, lookupFailure(err)
	}
	return beneficiary, nil
}

// UpdateBeneficiary replaces every editable field of an owned beneficiary.
func (s *Service) UpdateBeneficiary(ctx context.Context, accountID, beneficiaryID uuid.UUID, in domain.BeneficiaryInput) (*domain.Beneficiary, error) {
	in, err := normalizeBeneficiaryInput(in)
	if err != nil {
		return nil, err
	}
	beneficiary := &domain.Beneficiary{
		ID:              beneficiaryID,
		AccountID:       accountID,
		BeneficiaryName: in.BeneficiaryName,
		AccountNumber:   in.AccountNumber,
		BankName:        in.BankName,
		Amount:          in.Amount,
	}
	if err := s.repo.UpdateBeneficiary(ctx, beneficiary); err != nil {
		return nil, lookupFailure(err)
	}
	return beneficiary, nil
}

// DeleteBeneficiary removes an owned beneficiary. History keeps its snapshot.
func (s *Service) DeleteBeneficiary(ctx context.Context, accountID, beneficiaryID uuid.UUID) error {
	if err := s.repo.DeleteBeneficiary(ctx, beneficiaryID, accountID); err != nil {
		return lookupFailure(err)
	}
	log.Printf("level=info component=beneficiary msg=\"beneficiary deleted\" account_id=%s beneficiary_id=%s", accountID, beneficiaryID)
	return nil
}
