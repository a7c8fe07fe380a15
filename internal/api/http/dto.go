package http

import (
	"errors"
	"fmt"
	"strings"

	"custody-backend/internal/custody"
	"custody-backend/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Rules are static, so a registration failure is a programming error.
	if err := v.RegisterValidation("asset_status", func(fl validator.FieldLevel) bool {
		return domain.AssetStatus(fl.Field().String()).Valid()
	}); err != nil {
		panic("register asset_status validation: " + err.Error())
	}
	if err := v.RegisterValidation("outcome", func(fl validator.FieldLevel) bool {
		return domain.CleaningOutcome(fl.Field().String()).Valid()
	}); err != nil {
		panic("register outcome validation: " + err.Error())
	}
	return v
}

// describeValidation flattens validator errors into one readable line.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

type attributesDTO struct {
	Size          string `json:"size" validate:"max=64"`
	Color         string `json:"color" validate:"max=64"`
	Shape         string `json:"shape" validate:"max=64"`
	Condition     string `json:"condition" validate:"max=64"`
	Location      string `json:"location" validate:"max=128"`
	Area          string `json:"area" validate:"max=128"`
	OwnershipKind string `json:"ownership_kind" validate:"omitempty,oneof=OWNED LEASED_FROM_SUPPLIER"`
}

func (a attributesDTO) toDomain() domain.AssetAttributes {
	return domain.AssetAttributes{
		Size:          a.Size,
		Color:         a.Color,
		Shape:         a.Shape,
		Condition:     a.Condition,
		Location:      a.Location,
		Area:          a.Area,
		OwnershipKind: domain.OwnershipKind(a.OwnershipKind),
	}
}

type createAssetRequest struct {
	Code        string        `json:"code" validate:"required,max=64"`
	Barcode     string        `json:"barcode" validate:"max=128"`
	Attributes  attributesDTO `json:"attributes"`
	Status      string        `json:"status" validate:"omitempty,asset_status"`
	CustodianID string        `json:"custodian_id" validate:"required"`
}

type createBatchRequest struct {
	StartCode   string        `json:"start_code" validate:"required_without=Seed,max=64"`
	Seed        string        `json:"seed" validate:"max=64"`
	Count       int           `json:"count" validate:"required,min=1,max=100000"`
	Attributes  attributesDTO `json:"attributes"`
	CustodianID string        `json:"custodian_id" validate:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,asset_status"`
}

type updateOwnerRequest struct {
	CustodianID string `json:"custodian_id" validate:"required"`
}

type retireRequest struct {
	Reason    string `json:"reason" validate:"required,max=500"`
	RetiredBy string `json:"retired_by" validate:"max=128"`
}

type allocateRequest struct {
	Keys     []string            `json:"keys"`
	Filter   custody.LotFilter   `json:"filter"`
	Requests []domain.LotRequest `json:"requests" validate:"required,min=1,dive"`
}

type openTransferRequest struct {
	From     string      `json:"from" validate:"required"`
	To       string      `json:"to" validate:"required,nefield=From"`
	AssetIDs []uuid.UUID `json:"asset_ids" validate:"required,min=1"`
	Reason   string      `json:"reason" validate:"max=500"`
}

type notesRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type openRentalRequest struct {
	CustodianID         string      `json:"custodian_id" validate:"required"`
	Counterparty        string      `json:"counterparty" validate:"required,max=256"`
	Kind                string      `json:"kind" validate:"required,oneof=INTERNAL EXTERNAL"`
	AssetIDs            []uuid.UUID `json:"asset_ids" validate:"required,min=1"`
	EstimatedReturnDate string      `json:"estimated_return_date" validate:"omitempty,datetime=2006-01-02"`
	Notes               string      `json:"notes" validate:"max=1000"`
}

// processReturnRequest selects either explicit assets or quantities per lot.
type processReturnRequest struct {
	AssetIDs []uuid.UUID        `json:"asset_ids" validate:"required_without=Lots"`
	Lots     []domain.LotRequest `json:"lots" validate:"omitempty,dive"`
	Keys     []string            `json:"keys"`
	Notes    string              `json:"notes" validate:"max=1000"`
}

type sendToCleaningRequest struct {
	SenderID     string      `json:"sender_id" validate:"required"`
	ServiceParty string      `json:"service_party" validate:"required,nefield=SenderID"`
	AssetIDs     []uuid.UUID `json:"asset_ids" validate:"required,min=1"`
	Notes        string      `json:"notes" validate:"max=1000"`
}

type itemOutcome struct {
	AssetID uuid.UUID `json:"asset_id" validate:"required"`
	Outcome string    `json:"outcome" validate:"required,outcome"`
}

type serviceCompleteRequest struct {
	Outcomes []itemOutcome `json:"outcomes" validate:"required,min=1,dive"`
}

type returnResponse struct {
	Rental *domain.Rental       `json:"rental"`
	Return *domain.RentalReturn `json:"return"`
}

type reconcileResponse struct {
	Rental  *domain.Rental `json:"rental"`
	Changed bool           `json:"changed"`
}

type nextCodeResponse struct {
	Code string `json:"code"`
}
