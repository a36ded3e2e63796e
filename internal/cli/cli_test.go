package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"garage-backend-go/internal/app"
	"garage-backend-go/internal/config"
	"garage-backend-go/internal/models"
)

// newTestApp bootstraps a memory-driver app whose lookup service knows
// model 844 and 77.
func newTestApp(t *testing.T) *app.App {
	t.Helper()
	scraper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/844"):
			_, _ = w.Write([]byte(`{"modelName":"Honda NSX","imageUrl":"http://img/844.jpg"}`))
		case strings.HasSuffix(r.URL.Path, "/77"):
			_, _ = w.Write([]byte(`{"modelName":"Nissan Skyline GT-R"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(scraper.Close)

	a, err := app.Bootstrap(context.Background(), &config.Config{
		StoreDriver:     config.DriverMemory,
		StateDBPath:     ":memory:",
		LookupAPIURL:    scraper.URL + "/api/fetch_model",
		LookupTimeout:   time.Second,
		DeleteTicketTTL: time.Minute,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

type harness struct {
	app *app.App
}

func (h *harness) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	opts := &RootOptions{
		Open: func(context.Context, *RootOptions) (*app.App, func(), error) {
			return h.app, func() {}, nil
		},
	}
	cmd := NewRootCommand(opts)
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func (h *harness) items(t *testing.T, cat models.Category, n int) []models.Item {
	t.Helper()
	var items []models.Item
	require.Eventually(t, func() bool {
		items = h.app.Sync.State().Mirrors[cat].Items
		return len(items) == n
	}, 2*time.Second, 5*time.Millisecond)
	return items
}

func newHarness(t *testing.T) *harness {
	return &harness{app: newTestApp(t)}
}

func TestInvalidFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "whoami", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")

	_, err = h.run(t, "", "login")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, err = h.run(t, "", "login", "--guest")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as guest (local-")

	out, err = h.run(t, "", "whoami", "--format", "json")
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "signed_in", resp.Data.(map[string]interface{})["status"])

	_, err = h.run(t, "", "login", "--id-token", "tok")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out, err = h.run(t, "", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")
	assert.Nil(t, h.app.Sessions.Current())
}

func TestCommandsRequireSession(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{"list", "owned"},
		{"add", "844"},
		{"moves"},
		{"reconcile"},
		{"delete", "owned", "x", "--yes"},
	} {
		_, err := h.run(t, "", args...)
		require.Error(t, err, args)
		assert.Equal(t, ExitCommandError, GetExitCode(err), args)
		assert.Contains(t, err.Error(), "not signed in", args)
	}
}

func TestLookupCommand(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "", "lookup", "844")
	require.NoError(t, err)
	assert.Contains(t, out, "844  Honda NSX")
	assert.Contains(t, out, "Image: http://img/844.jpg")

	_, err = h.run(t, "", "lookup", "999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Fetch Failed")
}

func TestAddOwnedWithSameValue(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "login", "--guest")
	require.NoError(t, err)

	out, err := h.run(t, "", "add", "844", "--price", "150.50")
	require.NoError(t, err)
	assert.Contains(t, out, "Added 844 Honda NSX to owned")

	items := h.items(t, models.CategoryOwned, 1)
	assert.Equal(t, "Honda NSX", items[0].ModelName)
	assert.Equal(t, 150.5, items[0].PurchasePrice)
	assert.Equal(t, 150.5, items[0].CurrentValue)
	assert.Equal(t, models.PackagingBlister, items[0].Packaging)

	out, err = h.run(t, "", "list", "owned")
	require.NoError(t, err)
	assert.Contains(t, out, "Honda NSX")
	assert.Contains(t, out, "1 models, 0 chase. Value $150.50, cost $150.50")
}

func TestAddOwnedWithSeparateValue(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "login", "--guest")
	require.NoError(t, err)

	_, err = h.run(t, "", "add", "844", "--price", "100", "--value", "1250", "--chase")
	require.NoError(t, err)

	items := h.items(t, models.CategoryOwned, 1)
	assert.Equal(t, 100.0, items[0].PurchasePrice)
	assert.Equal(t, 1250.0, items[0].CurrentValue)
	assert.True(t, items[0].IsChase)

	out, err := h.run(t, "", "list", "collection")
	require.NoError(t, err)
	assert.Contains(t, out, "Value $1,250.00")
}

func TestAddPreorder(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "login", "--guest")
	require.NoError(t, err)

	_, err = h.run(t, "", "add", "77", "--into", "preorder", "--expected", "35", "--paid", "10", "--eta-month", "Smarch")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = h.run(t, "", "add", "77", "--into", "preorder", "--expected", "35", "--paid", "10", "--eta-month", "May", "--eta-year", "2027")
	require.NoError(t, err)

	items := h.items(t, models.CategoryPreorder, 1)
	assert.Equal(t, 35.0, items[0].ExpectedPrice)
	assert.Equal(t, 10.0, items[0].PaidAmount)
	assert.Equal(t, "May", items[0].ETAMonth)
	assert.Equal(t, "2027", items[0].ETAYear)

	out, err := h.run(t, "", "list", "preorder")
	require.NoError(t, err)
	assert.Contains(t, out, "1 pre-orders. Exposure $35.00, paid $10.00")
}

func TestUpdateCommand(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "login", "--guest")
	require.NoError(t, err)
	_, err = h.run(t, "", "add", "844", "--into", "wanted")
	require.NoError(t, err)
	id := h.items(t, models.CategoryWanted, 1)[0].ID

	_, err = h.run(t, "", "update", "wanted", id, "--notes", "any colour")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		it, ok := h.app.Sync.Item(models.CategoryWanted, id)
		return ok && it.Notes == "any colour"
	}, 2*time.Second, 5*time.Millisecond)

	_, err = h.run(t, "", "update", "wanted", id, "--price", "5")
	require.Error(t, err, "price is not a field of the wanted list")
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "login", "--guest")
	require.NoError(t, err)
	_, err = h.run(t, "", "add", "844")
	require.NoError(t, err)
	id := h.items(t, models.CategoryOwned, 1)[0].ID

	out, err := h.run(t, "n\n", "delete", "owned", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Delete this model? [y/N]")
	assert.Contains(t, out, "Nothing deleted")
	assert.Equal(t, 1, h.app.Memory.Count(h.app.Sessions.Current().UID, models.CategoryOwned))

	out, err = h.run(t, "y\n", "delete", "owned", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted "+id)
	h.items(t, models.CategoryOwned, 0)
}

func TestMoveCommand(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "login", "--guest")
	require.NoError(t, err)
	_, err = h.run(t, "", "add", "77", "--into", "preorder", "--expected", "35", "--source", "HobbyLink")
	require.NoError(t, err)
	id := h.items(t, models.CategoryPreorder, 1)[0].ID

	out, err := h.run(t, "\n", "move", "preorder", id, "--to", "owned")
	require.NoError(t, err)
	assert.Contains(t, out, "Has this item arrived? Move to Main Garage? [y/N]")
	assert.Contains(t, out, "Nothing moved")

	out, err = h.run(t, "", "move", "preorder", id, "--to", "owned", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Moved "+id+" from preorder to owned")

	owned := h.items(t, models.CategoryOwned, 1)
	h.items(t, models.CategoryPreorder, 0)
	assert.Equal(t, 35.0, owned[0].PurchasePrice)
	assert.Equal(t, models.ConditionMintInBox, owned[0].Condition)
	assert.Contains(t, owned[0].Notes, "Pre-ordered from HobbyLink. Arrived: ")

	out, err = h.run(t, "", "moves")
	require.NoError(t, err)
	assert.Contains(t, out, "No pending moves")

	out, err = h.run(t, "", "reconcile")
	require.NoError(t, err)
	assert.Contains(t, out, "Completed 0, abandoned 0, failed 0")
}

func TestMoveCommand_RequiresTarget(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", "move", "wanted", "x")
	require.Error(t, err)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "bad", assert.AnError)))
}
