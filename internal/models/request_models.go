package models

import (
	"strings"
	"time"
)

// CreateItemRequest represents the add form of any category. Numeric fields
// are kept as typed and coerced when the item is built.
type CreateItemRequest struct {
	ModelNumber string `json:"modelNumber" binding:"required"`
	ModelName   string `json:"modelName"`
	ImageURL    string `json:"imageUrl"`
	Condition   string `json:"condition"`
	Notes       string `json:"notes"`
	IsChase     bool   `json:"isChase"`

	PurchasePrice AmountInput `json:"purchasePrice"`
	CurrentValue  AmountInput `json:"currentValue"`
	UseSameValue  bool        `json:"useSameValue"` // current value follows purchase price
	Packaging     string      `json:"packaging"`
	PurchaseDate  string      `json:"purchaseDate"`
	Source        string      `json:"source"`

	ExpectedPrice AmountInput `json:"expectedPrice"`
	PaidAmount    AmountInput `json:"poAmount"`
	ETAMonth      string      `json:"etaMonth"`
	ETAYear       string      `json:"etaYear"`
	IsDelayed     bool        `json:"isDelayed"`
}

// NewItem builds the record to persist in category from the request.
func (r CreateItemRequest) NewItem(category Category, now time.Time) (Item, error) {
	if !category.Valid() {
		return Item{}, ErrUnknownCategory
	}
	modelNumber := strings.TrimSpace(r.ModelNumber)
	if modelNumber == "" {
		return Item{}, ErrModelNumberNeeded
	}
	condition, err := ParseCondition(r.Condition)
	if err != nil {
		return Item{}, err
	}

	it := Item{
		Category:    category,
		ModelNumber: modelNumber,
		ModelName:   r.ModelName,
		ImageURL:    r.ImageURL,
		Condition:   condition,
		Notes:       r.Notes,
		IsChase:     r.IsChase,
		AddedAt:     now.UTC(),
	}

	switch category {
	case CategoryOwned:
		packaging, err := ParsePackaging(r.Packaging)
		if err != nil {
			return Item{}, err
		}
		it.PurchasePrice = r.PurchasePrice.Value()
		it.CurrentValue = r.CurrentValue.Value()
		if r.UseSameValue {
			it.CurrentValue = it.PurchasePrice
		}
		it.Packaging = packaging
		it.PurchaseDate = r.PurchaseDate
		it.Source = r.Source
	case CategoryPreorder:
		it.ExpectedPrice = r.ExpectedPrice.Value()
		it.PaidAmount = r.PaidAmount.Value()
		it.ETAMonth = r.ETAMonth
		it.ETAYear = r.ETAYear
		it.Source = r.Source
		it.IsDelayed = r.IsDelayed
	}
	return it, nil
}

// UpdateItemRequest represents an edit. Nil fields are left untouched.
type UpdateItemRequest struct {
	ModelName *string `json:"modelName,omitempty"`
	ImageURL  *string `json:"imageUrl,omitempty"`
	Condition *string `json:"condition,omitempty"`
	Notes     *string `json:"notes,omitempty"`
	IsChase   *bool   `json:"isChase,omitempty"`

	PurchasePrice *AmountInput `json:"purchasePrice,omitempty"`
	CurrentValue  *AmountInput `json:"currentValue,omitempty"`
	Packaging     *string      `json:"packaging,omitempty"`
	PurchaseDate  *string      `json:"purchaseDate,omitempty"`
	Source        *string      `json:"source,omitempty"`

	ExpectedPrice *AmountInput `json:"expectedPrice,omitempty"`
	PaidAmount    *AmountInput `json:"poAmount,omitempty"`
	ETAMonth      *string      `json:"etaMonth,omitempty"`
	ETAYear       *string      `json:"etaYear,omitempty"`
	IsDelayed     *bool        `json:"isDelayed,omitempty"`
}

// Fields returns the document fields the request sets, limited to those that
// belong to category. An empty map means there is nothing to write.
func (r UpdateItemRequest) Fields(category Category) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	setString := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	setAmount := func(key string, v *AmountInput) {
		if v != nil {
			fields[key] = v.Value()
		}
	}
	setBool := func(key string, v *bool) {
		if v != nil {
			fields[key] = *v
		}
	}

	setString(FieldModelName, r.ModelName)
	setString(FieldImageURL, r.ImageURL)
	setString(FieldNotes, r.Notes)
	setBool(FieldIsChase, r.IsChase)
	if r.Condition != nil {
		c, err := ParseCondition(*r.Condition)
		if err != nil {
			return nil, err
		}
		fields[FieldCondition] = string(c)
	}

	switch category {
	case CategoryOwned:
		setAmount(FieldPurchasePrice, r.PurchasePrice)
		setAmount(FieldCurrentValue, r.CurrentValue)
		setString(FieldPurchaseDate, r.PurchaseDate)
		setString(FieldSource, r.Source)
		if r.Packaging != nil {
			p, err := ParsePackaging(*r.Packaging)
			if err != nil {
				return nil, err
			}
			fields[FieldPackaging] = string(p)
		}
	case CategoryPreorder:
		setAmount(FieldExpectedPrice, r.ExpectedPrice)
		setAmount(FieldPaidAmount, r.PaidAmount)
		setString(FieldETAMonth, r.ETAMonth)
		setString(FieldETAYear, r.ETAYear)
		setString(FieldSource, r.Source)
		setBool(FieldIsDelayed, r.IsDelayed)
	case CategoryWanted:
	default:
		return nil, ErrUnknownCategory
	}
	return fields, nil
}

// MoveRequest represents a move of one item into another category. Prices
// are optional overrides of the target defaults.
type MoveRequest struct {
	To            string       `json:"to" binding:"required"`
	PurchasePrice *AmountInput `json:"purchasePrice,omitempty"`
	CurrentValue  *AmountInput `json:"currentValue,omitempty"`
}

// FederatedSignInRequest carries a credential issued by an identity provider.
type FederatedSignInRequest struct {
	ProviderID string `json:"providerId"`
	IDToken    string `json:"idToken" binding:"required"`
}

// ConfirmDeleteRequest answers a pending delete ticket.
type ConfirmDeleteRequest struct {
	Confirm bool `json:"confirm"`
}
