package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cast"
)

// Condition describes the physical state of a model.
type Condition string

const (
	ConditionMintInBox  Condition = "Mint in Box"
	ConditionOpenedMint Condition = "Opened/Mint"
	ConditionLoose      Condition = "Loose/Displayed"
	ConditionDamaged    Condition = "Damaged"
)

// Packaging describes how an owned model is packaged.
type Packaging string

const (
	PackagingBlister Packaging = "Blister"
	PackagingBox     Packaging = "Box"
	PackagingLoose   Packaging = "Loose"
)

var (
	ErrInvalidCondition  = errors.New("invalid condition")
	ErrInvalidPackaging  = errors.New("invalid packaging")
	ErrModelNumberNeeded = errors.New("model number is required")
)

// ParseCondition validates a condition. Empty input selects Mint in Box.
func ParseCondition(s string) (Condition, error) {
	switch c := Condition(s); c {
	case "":
		return ConditionMintInBox, nil
	case ConditionMintInBox, ConditionOpenedMint, ConditionLoose, ConditionDamaged:
		return c, nil
	}
	return "", fmt.Errorf("%w: '%s'", ErrInvalidCondition, s)
}

// ParsePackaging validates a packaging value. Empty input selects Blister.
func ParsePackaging(s string) (Packaging, error) {
	switch p := Packaging(s); p {
	case "":
		return PackagingBlister, nil
	case PackagingBlister, PackagingBox, PackagingLoose:
		return p, nil
	}
	return "", fmt.Errorf("%w: '%s'", ErrInvalidPackaging, s)
}

// Document field names, shared with the browser client.
const (
	FieldType          = "type"
	FieldModelNumber   = "modelNumber"
	FieldModelName     = "modelName"
	FieldImageURL      = "imageUrl"
	FieldCondition     = "condition"
	FieldNotes         = "notes"
	FieldIsChase       = "isChase"
	FieldAddedAt       = "addedAt"
	FieldPurchasePrice = "purchasePrice"
	FieldCurrentValue  = "currentValue"
	FieldPackaging     = "packaging"
	FieldPurchaseDate  = "purchaseDate"
	FieldSource        = "source"
	FieldExpectedPrice = "expectedPrice"
	FieldPaidAmount    = "poAmount"
	FieldETAMonth      = "etaMonth"
	FieldETAYear       = "etaYear"
	FieldIsDelayed     = "isDelayed"
)

// Item is one record of any category. Category-specific fields are zero for
// categories that do not use them.
type Item struct {
	ID          string    `json:"id" firestore:"-"` // Store-assigned document ID
	Category    Category  `json:"type" firestore:"type"`
	ModelNumber string    `json:"modelNumber" firestore:"modelNumber"`
	ModelName   string    `json:"modelName" firestore:"modelName"`
	ImageURL    string    `json:"imageUrl" firestore:"imageUrl"`
	Condition   Condition `json:"condition" firestore:"condition"`
	Notes       string    `json:"notes" firestore:"notes"`
	IsChase     bool      `json:"isChase" firestore:"isChase"`
	AddedAt     time.Time `json:"addedAt" firestore:"addedAt"`

	// Owned
	PurchasePrice float64   `json:"purchasePrice" firestore:"purchasePrice"`
	CurrentValue  float64   `json:"currentValue" firestore:"currentValue"`
	Packaging     Packaging `json:"packaging,omitempty" firestore:"packaging,omitempty"`
	PurchaseDate  string    `json:"purchaseDate,omitempty" firestore:"purchaseDate,omitempty"`

	// Owned and pre-order
	Source string `json:"source,omitempty" firestore:"source,omitempty"`

	// Pre-order
	ExpectedPrice float64 `json:"expectedPrice" firestore:"expectedPrice"`
	PaidAmount    float64 `json:"poAmount" firestore:"poAmount"`
	ETAMonth      string  `json:"etaMonth,omitempty" firestore:"etaMonth,omitempty"`
	ETAYear       string  `json:"etaYear,omitempty" firestore:"etaYear,omitempty"`
	IsDelayed     bool    `json:"isDelayed" firestore:"isDelayed"`
}

// Document renders the item as the field map written to the store. Only the
// fields that belong to the item's category are included; numbers are
// always numbers.
func (it Item) Document() map[string]interface{} {
	doc := map[string]interface{}{
		FieldType:        string(it.Category),
		FieldModelNumber: it.ModelNumber,
		FieldModelName:   it.ModelName,
		FieldImageURL:    it.ImageURL,
		FieldCondition:   string(it.Condition),
		FieldNotes:       it.Notes,
		FieldIsChase:     it.IsChase,
		FieldAddedAt:     FormatTimestamp(it.AddedAt),
	}
	switch it.Category {
	case CategoryOwned:
		doc[FieldPurchasePrice] = it.PurchasePrice
		doc[FieldCurrentValue] = it.CurrentValue
		doc[FieldPackaging] = string(it.Packaging)
		doc[FieldPurchaseDate] = it.PurchaseDate
		doc[FieldSource] = it.Source
	case CategoryPreorder:
		doc[FieldExpectedPrice] = it.ExpectedPrice
		doc[FieldPaidAmount] = it.PaidAmount
		doc[FieldETAMonth] = it.ETAMonth
		doc[FieldETAYear] = it.ETAYear
		doc[FieldSource] = it.Source
		doc[FieldIsDelayed] = it.IsDelayed
	}
	return doc
}

// ItemFromDocument decodes a stored field map. Documents written by older
// clients may hold numbers as strings; those are coerced the same way as form
// input. The category always comes from the collection the document was
// read from, never from its own type field.
func ItemFromDocument(id string, category Category, data map[string]interface{}) Item {
	str := func(key string) string { return cast.ToString(data[key]) }
	boolean := func(key string) bool { return cast.ToBool(data[key]) }

	it := Item{
		ID:          id,
		Category:    category,
		ModelNumber: str(FieldModelNumber),
		ModelName:   str(FieldModelName),
		ImageURL:    str(FieldImageURL),
		Condition:   Condition(str(FieldCondition)),
		Notes:       str(FieldNotes),
		IsChase:     boolean(FieldIsChase),
		AddedAt:     ParseTimestamp(data[FieldAddedAt]),
	}
	switch category {
	case CategoryOwned:
		it.PurchasePrice = Amount(data[FieldPurchasePrice])
		it.CurrentValue = Amount(data[FieldCurrentValue])
		it.Packaging = Packaging(str(FieldPackaging))
		it.PurchaseDate = str(FieldPurchaseDate)
		it.Source = str(FieldSource)
	case CategoryPreorder:
		it.ExpectedPrice = Amount(data[FieldExpectedPrice])
		it.PaidAmount = Amount(data[FieldPaidAmount])
		it.ETAMonth = str(FieldETAMonth)
		it.ETAYear = str(FieldETAYear)
		it.Source = str(FieldSource)
		it.IsDelayed = boolean(FieldIsDelayed)
	}
	return it
}

// Totals summarises one category for the view.
type Totals struct {
	Count         int     `json:"count"`
	ChaseCount    int     `json:"chaseCount"`
	CurrentValue  float64 `json:"currentValue"`  // owned
	PurchaseCost  float64 `json:"purchaseCost"`  // owned
	TotalExposure float64 `json:"totalExposure"` // pre-order expected prices
	PaidAmount    float64 `json:"paidAmount"`    // pre-order deposits
}

// Summarize computes the totals of a list.
func Summarize(items []Item) Totals {
	t := Totals{Count: len(items)}
	for _, it := range items {
		if it.IsChase {
			t.ChaseCount++
		}
		t.CurrentValue += it.CurrentValue
		t.PurchaseCost += it.PurchasePrice
		t.TotalExposure += it.ExpectedPrice
		t.PaidAmount += it.PaidAmount
	}
	return t
}
