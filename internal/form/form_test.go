package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garage-backend-go/internal/lookup"
	"garage-backend-go/internal/models"
)

type stubFetcher struct {
	md  *models.ModelMetadata
	err error
}

func (s stubFetcher) Fetch(_ context.Context, modelNumber string) (*models.ModelMetadata, error) {
	if s.err != nil {
		return nil, s.err
	}
	md := *s.md
	md.ModelNumber = modelNumber
	return &md, nil
}

type captureSaver struct {
	category models.Category
	req      models.CreateItemRequest
	err      error
}

func (c *captureSaver) Create(_ context.Context, category models.Category, req models.CreateItemRequest) (string, error) {
	c.category, c.req = category, req
	if c.err != nil {
		return "", c.err
	}
	return "new-id", nil
}

func TestOwnedForm_SameValueFollowsPurchasePrice(t *testing.T) {
	f := NewOwnedForm()
	assert.True(t, f.UseSameValue)

	f.SetPurchasePrice("100")
	assert.Equal(t, "100", f.CurrentValue)
	f.SetCurrentValue("250")
	assert.Equal(t, "100", f.CurrentValue)

	f.ToggleSameValue()
	f.SetCurrentValue("250")
	f.SetPurchasePrice("90")
	assert.Equal(t, "250", f.CurrentValue)

	f.ToggleSameValue()
	assert.Equal(t, "90", f.CurrentValue)
}

func TestPreorderForm_Defaults(t *testing.T) {
	f := NewPreorderForm(time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "January", f.ETAMonth)
	assert.Equal(t, "2026", f.ETAYear)
	assert.False(t, f.IsDelayed)

	require.NoError(t, f.SetETAMonth("March"))
	assert.ErrorIs(t, f.SetETAMonth("Smarch"), ErrInvalidMonth)
	assert.Equal(t, "March", f.ETAMonth)
}

func TestAddFlow_LookupThenSave(t *testing.T) {
	saver := &captureSaver{}
	flow := NewAddFlow(stubFetcher{md: &models.ModelMetadata{ModelName: "Honda NSX", ImageURL: "img"}}, saver, nil)

	md, err := flow.Lookup(context.Background(), "844")
	require.NoError(t, err)
	assert.Equal(t, "Honda NSX", md.ModelName)
	assert.Equal(t, StatusFound, flow.State().Status)

	flow.EditOwned(func(f *OwnedForm) { f.SetPurchasePrice("100") })
	id, err := flow.Save(context.Background(), models.CategoryOwned)
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)

	item, err := saver.req.NewItem(saver.category, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 100.0, item.PurchasePrice)
	assert.Equal(t, 100.0, item.CurrentValue)
	assert.Equal(t, "Honda NSX", item.ModelName)

	st := flow.State()
	assert.Equal(t, StatusIdle, st.Status)
	assert.Nil(t, st.Found)
	assert.Empty(t, st.Owned.PurchasePrice)
}

func TestAddFlow_LookupFailureReturnsToIdle(t *testing.T) {
	flow := NewAddFlow(stubFetcher{err: lookup.ErrLookupUnavailable}, &captureSaver{}, nil)

	_, err := flow.Lookup(context.Background(), "844")
	require.Error(t, err)

	st := flow.State()
	assert.Equal(t, StatusIdle, st.Status)
	assert.Contains(t, st.Error, "Is the lookup service running?")

	_, err = flow.Save(context.Background(), models.CategoryOwned)
	assert.ErrorIs(t, err, ErrNothingFound)
}

func TestAddFlow_SaveFailureKeepsInputs(t *testing.T) {
	saver := &captureSaver{err: errors.New("permission denied")}
	flow := NewAddFlow(stubFetcher{md: &models.ModelMetadata{ModelName: "x"}}, saver, nil)
	_, err := flow.Lookup(context.Background(), "1")
	require.NoError(t, err)
	require.NoError(t, flow.EditPreorder(func(f *PreorderForm) error {
		f.ExpectedPrice = "55"
		return nil
	}))

	_, err = flow.Save(context.Background(), models.CategoryPreorder)
	require.Error(t, err)
	assert.Equal(t, "55", string(saver.req.ExpectedPrice))

	st := flow.State()
	assert.Equal(t, StatusIdle, st.Status)
	require.NotNil(t, st.Found)
	assert.Equal(t, "55", st.Preorder.ExpectedPrice)
	assert.Contains(t, st.Error, "Save Failed")
}
