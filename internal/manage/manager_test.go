package manage_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edumfa/edumfa-go/internal/events"
	"github.com/edumfa/edumfa-go/internal/manage"
	"github.com/edumfa/edumfa-go/internal/models"
	"github.com/edumfa/edumfa-go/internal/registry"
	"github.com/edumfa/edumfa-go/internal/store"
	mocks "github.com/edumfa/edumfa-go/internal/testing/mocks/resolvers"
)

type fixture struct {
	manager *manage.Manager
	store   *store.Store
	out     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))

	reg := registry.New(st)
	reg.SetGracePeriod(0)
	t.Cleanup(func() {
		_ = reg.Close()
		_ = st.Close()
	})

	out := &bytes.Buffer{}
	m := manage.NewManager(reg, st)
	m.Events = events.NewDispatcher(events.NewCounterHandler(st))
	m.Out = out
	m.Err = out
	m.In = strings.NewReader("")
	return &fixture{manager: m, store: st, out: out}
}

func mockRegistration(name string, priority int) models.ResolverRegistration {
	return models.ResolverRegistration{
		Name:     name,
		Type:     mocks.MockResolverType,
		Priority: priority,
		Data:     models.BasicConfig{"password": "secret", "editable": true},
	}
}

func TestResolverRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	results, err := f.manager.ImportConfResolver(ctx, []models.ResolverRegistration{mockRegistration("reso1", 5)}, false, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, manage.OutcomeAdded, results[0].Outcome)

	exported := f.manager.GetConfResolver("reso1", true)
	require.Len(t, exported, 1)
	assert.Equal(t, "secret", exported[0].Data["password"])

	results, err = f.manager.ImportConfResolver(ctx, exported, false, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, manage.OutcomeUpdated, results[0].Outcome)

	registration, ok := f.manager.Registry.Current().Registration("reso1")
	require.True(t, ok)
	assert.Equal(t, mocks.MockResolverType, registration.Type)
	assert.Equal(t, 5, registration.Priority)
	assert.Equal(t, "secret", registration.Data.GetStringWithDefault("password", ""))
}

func TestResolverCensoredExportKeepsSecret(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.ImportConfResolver(ctx, []models.ResolverRegistration{mockRegistration("reso1", 0)}, false, false)
	require.NoError(t, err)

	censored := f.manager.GetConfResolver("", false)
	require.Len(t, censored, 1)
	assert.Equal(t, models.CensoredValue, censored[0].Data["password"])

	_, err = f.manager.ImportConfResolver(ctx, censored, false, true)
	require.NoError(t, err)

	registration, _ := f.manager.Registry.Current().Registration("reso1")
	assert.Equal(t, "secret", registration.Data.GetStringWithDefault("password", ""))
}

func TestResolverImportSkipsExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.ImportConfResolver(ctx, []models.ResolverRegistration{mockRegistration("reso1", 5)}, false, false)
	require.NoError(t, err)

	results, err := f.manager.ImportConfResolver(ctx, []models.ResolverRegistration{mockRegistration("reso1", 9)}, true, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, manage.OutcomeSkipped, results[0].Outcome)
	assert.Contains(t, f.out.String(), "No cleanup for resolvers implemented")
	assert.Contains(t, f.out.String(), "Resolver reso1 exists and -u is not specified, skipping import.")

	registration, _ := f.manager.Registry.Current().Registration("reso1")
	assert.Equal(t, 5, registration.Priority)
}

func TestConfImportLegacyList(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "resolvers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- resolvername: reso1
  type: mockresolver
  data:
    password: secret
`), 0o600))

	_, _, err := f.manager.ConfImport(path, "")
	assert.ErrorIs(t, err, models.ErrMissingParameter)

	document, conftypes, err := f.manager.ConfImport(path, models.ConfTypeResolver)
	require.NoError(t, err)
	assert.Equal(t, []string{models.ConfTypeResolver}, conftypes)
	require.Len(t, document.Resolver, 1)
	assert.Equal(t, "reso1", document.Resolver[0].Name)
	assert.Contains(t, f.out.String(), "Importing resolver from "+path)
}

func TestConfImportFromStdin(t *testing.T) {
	f := newFixture(t)
	f.manager.In = strings.NewReader(`{"version": "1.0", "policy": [{"name": "pol1", "scope": "admin"}]}`)

	document, conftypes, err := f.manager.ConfImport("", "")
	require.NoError(t, err)
	assert.Equal(t, []string{models.ConfTypePolicy}, conftypes)
	require.Len(t, document.Policy, 1)
	assert.Contains(t, f.out.String(), "Importing policy from Standard input")

	_, _, err = f.manager.ConfImport("", "token")
	assert.Error(t, err)
}

func TestExportImportDocument(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.ImportConfResolver(ctx, []models.ResolverRegistration{mockRegistration("reso1", 3)}, false, false)
	require.NoError(t, err)
	_, err = f.store.SetPolicy(ctx, models.Policy{Name: "pol1", Scope: "authentication", Action: "otppin=userstore"})
	require.NoError(t, err)

	document, err := f.manager.Export(ctx, nil, "", true)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "export.yaml")
	require.NoError(t, f.manager.ConfExport(document, path))

	second := newFixture(t)
	imported, conftypes, err := second.manager.ConfImport(path, "")
	require.NoError(t, err)
	assert.Equal(t, []string{models.ConfTypePolicy, models.ConfTypeResolver}, conftypes)
	assert.Equal(t, "1.0", imported.Version.Original())

	results, err := second.manager.Import(ctx, imported, conftypes, false, false)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	registration, ok := second.manager.Registry.Current().Registration("reso1")
	require.True(t, ok)
	assert.Equal(t, 3, registration.Priority)

	policies, err := second.store.ListPolicies(ctx, "pol1")
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "authentication", policies[0].Scope)
}

func TestImportConfPolicy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.store.SetPolicy(ctx, models.Policy{Name: "old", Scope: "admin"})
	require.NoError(t, err)

	results, err := f.manager.ImportConfPolicy(ctx, []models.Policy{{Name: "pol1", Scope: "authentication"}}, true, false)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, manage.OutcomeAdded, results[0].Outcome)
	assert.Contains(t, f.out.String(), "Cleanup old policies.")
	assert.Contains(t, f.out.String(), "Deleted policy old with result")

	policies, err := f.manager.GetConfPolicy(ctx, "")
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "pol1", policies[0].Name)

	results, err = f.manager.ImportConfPolicy(ctx, []models.Policy{{Name: "pol1", Scope: "admin"}}, false, false)
	require.NoError(t, err)
	assert.Equal(t, manage.OutcomeSkipped, results[0].Outcome)

	results, err = f.manager.ImportConfPolicy(ctx, []models.Policy{{Name: "pol1", Scope: "admin"}}, false, true)
	require.NoError(t, err)
	assert.Equal(t, manage.OutcomeUpdated, results[0].Outcome)

	policies, err = f.manager.GetConfPolicy(ctx, "pol1")
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "admin", policies[0].Scope)
}

func TestImportConfEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	event := models.EventDefinition{
		Name:          "count-auth",
		Event:         []string{"validate_check"},
		HandlerModule: events.CounterHandlerIdentifier,
		Action:        events.ActionIncreaseCounter,
		Options:       map[string]any{"counter_name": "auth"},
	}

	results, err := f.manager.ImportConfEvent(ctx, []models.EventDefinition{event}, false, false)
	require.NoError(t, err)
	assert.Equal(t, manage.OutcomeAdded, results[0].Outcome)

	existing, err := f.manager.GetConfEvent(ctx, "count-auth")
	require.NoError(t, err)
	require.Len(t, existing, 1)
	id := existing[0].ID
	assert.Equal(t, events.PositionPost, existing[0].Position)

	event.Ordering = 4
	results, err = f.manager.ImportConfEvent(ctx, []models.EventDefinition{event}, false, true)
	require.NoError(t, err)
	assert.Equal(t, manage.OutcomeUpdated, results[0].Outcome)

	existing, err = f.manager.GetConfEvent(ctx, "")
	require.NoError(t, err)
	require.Len(t, existing, 1)
	assert.Equal(t, id, existing[0].ID)
	assert.Equal(t, 4, existing[0].Ordering)

	invalid := event
	invalid.Name = "broken"
	invalid.Action = "explode"
	_, err = f.manager.ImportConfEvent(ctx, []models.EventDefinition{invalid}, false, false)
	assert.ErrorIs(t, err, models.ErrInvalidParameter)

	_, err = f.manager.ImportConfEvent(ctx, nil, true, false)
	require.NoError(t, err)
	existing, err = f.manager.GetConfEvent(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, existing)
}
