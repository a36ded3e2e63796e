package form

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"garage-backend-go/internal/models"
)

// ErrInvalidMonth is returned for an ETA month outside Months.
var ErrInvalidMonth = errors.New("invalid ETA month")

// Months are the ETA month choices, in order.
var Months = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// OwnedForm holds the price and condition inputs of the add screen. The
// values are kept as typed; they are coerced when the item is built.
type OwnedForm struct {
	PurchasePrice string `json:"purchasePrice"`
	CurrentValue  string `json:"currentValue"`
	UseSameValue  bool   `json:"useSameValue"`
	Condition     string `json:"condition"`
	Packaging     string `json:"packaging"`
	PurchaseDate  string `json:"purchaseDate"`
	Source        string `json:"source"`
	Notes         string `json:"notes"`
	IsChase       bool   `json:"isChase"`
}

// NewOwnedForm returns the blank form: Mint in Box, Blister, and the current
// value following the purchase price.
func NewOwnedForm() OwnedForm {
	return OwnedForm{
		UseSameValue: true,
		Condition:    string(models.ConditionMintInBox),
		Packaging:    string(models.PackagingBlister),
	}
}

// SetPurchasePrice updates the purchase price, and the current value with it
// while the two are linked.
func (f *OwnedForm) SetPurchasePrice(v string) {
	f.PurchasePrice = v
	if f.UseSameValue {
		f.CurrentValue = v
	}
}

// SetCurrentValue is ignored while the current value follows the purchase price.
func (f *OwnedForm) SetCurrentValue(v string) {
	if !f.UseSameValue {
		f.CurrentValue = v
	}
}

// ToggleSameValue flips the link. Turning it on copies the purchase price.
func (f *OwnedForm) ToggleSameValue() {
	f.UseSameValue = !f.UseSameValue
	if f.UseSameValue {
		f.CurrentValue = f.PurchasePrice
	}
}

// Request builds the create request for a looked-up model.
func (f OwnedForm) Request(md models.ModelMetadata) models.CreateItemRequest {
	return models.CreateItemRequest{
		ModelNumber:   md.ModelNumber,
		ModelName:     md.ModelName,
		ImageURL:      md.ImageURL,
		Condition:     f.Condition,
		Notes:         f.Notes,
		IsChase:       f.IsChase,
		PurchasePrice: models.AmountInput(f.PurchasePrice),
		CurrentValue:  models.AmountInput(f.CurrentValue),
		UseSameValue:  f.UseSameValue,
		Packaging:     f.Packaging,
		PurchaseDate:  f.PurchaseDate,
		Source:        f.Source,
	}
}

// PreorderForm holds the inputs of the new pre-order screen.
type PreorderForm struct {
	ExpectedPrice string `json:"expectedPrice"`
	PaidAmount    string `json:"poAmount"`
	ETAMonth      string `json:"etaMonth"`
	ETAYear       string `json:"etaYear"`
	Source        string `json:"source"`
	IsDelayed     bool   `json:"isDelayed"`
	Notes         string `json:"notes"`
}

// NewPreorderForm returns the blank form with an ETA of January of the
// current year.
func NewPreorderForm(now time.Time) PreorderForm {
	return PreorderForm{
		ETAMonth: Months[0],
		ETAYear:  strconv.Itoa(now.Year()),
	}
}

// SetETAMonth validates and sets the ETA month.
func (f *PreorderForm) SetETAMonth(month string) error {
	for _, m := range Months {
		if m == month {
			f.ETAMonth = month
			return nil
		}
	}
	return fmt.Errorf("%w: '%s'", ErrInvalidMonth, month)
}

// Request builds the create request for a looked-up model.
func (f PreorderForm) Request(md models.ModelMetadata) models.CreateItemRequest {
	return models.CreateItemRequest{
		ModelNumber:   md.ModelNumber,
		ModelName:     md.ModelName,
		ImageURL:      md.ImageURL,
		Notes:         f.Notes,
		ExpectedPrice: models.AmountInput(f.ExpectedPrice),
		PaidAmount:    models.AmountInput(f.PaidAmount),
		ETAMonth:      f.ETAMonth,
		ETAYear:       f.ETAYear,
		Source:        f.Source,
		IsDelayed:     f.IsDelayed,
	}
}
