package copilot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/inventoryd/internal/equipment"
	"github.com/fyrsmithlabs/inventoryd/internal/tenant"
)

func newCreateToolFixture(t *testing.T) (*CreateEquipmentTool, *equipment.MemoryStore) {
	t.Helper()
	store, err := equipment.NewMemoryStore(equipment.MemoryStoreConfig{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := equipment.NewService(store, zap.NewNop())
	require.NoError(t, err)

	tool, err := NewCreateEquipmentTool(svc, zap.NewNop())
	require.NoError(t, err)
	return tool, store
}

func tenantCtx(tenantID string) context.Context {
	return tenant.ContextWithTenant(context.Background(), tenantID)
}

func TestCreateEquipmentTool_Schema(t *testing.T) {
	tool, _ := newCreateToolFixture(t)

	assert.Equal(t, "create_equipment", tool.Name())

	params := tool.Parameters()
	require.Contains(t, params, "name")
	assert.True(t, params["name"].Required)

	for _, optional := range []string{
		"description", "category", "status", "attributesJson",
		"lastMaintenanceDate", "purchaseDate", "serialNumber",
	} {
		require.Contains(t, params, optional)
		assert.False(t, params[optional].Required, optional)
	}
}

func TestCreateEquipmentTool_Execute(t *testing.T) {
	tool, store := newCreateToolFixture(t)

	result, err := tool.Execute(tenantCtx("tenant-a"), map[string]any{
		"name":           "Forklift FL-200",
		"description":    "electric forklift",
		"category":       "Material Handling",
		"status":         "In Service",
		"serialNumber":   "SN-001",
		"attributesJson": `{"capacity":"2000kg","fuel":"electric"}`,
		"purchaseDate":   "2023-01-01",
	})
	require.NoError(t, err)

	var created equipment.Record
	require.NoError(t, json.Unmarshal([]byte(result), &created))

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "tenant-a", created.TenantID)
	assert.Equal(t, "Forklift FL-200", created.Name)
	assert.Equal(t, "In Service", created.Status)
	assert.Equal(t, "2000kg", created.Attributes["capacity"])
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), created.PurchaseDate)

	stored, err := store.Get(context.Background(), "tenant-a", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Forklift FL-200", stored.Name)
}

func TestCreateEquipmentTool_Defaults(t *testing.T) {
	fixed := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = time.Now }()

	tool, _ := newCreateToolFixture(t)

	result, err := tool.Execute(tenantCtx("tenant-a"), map[string]any{
		"name": "Bare Minimum",
	})
	require.NoError(t, err)

	var created equipment.Record
	require.NoError(t, json.Unmarshal([]byte(result), &created))

	assert.Equal(t, equipment.StatusAvailable, created.Status)
	assert.False(t, created.PurchaseDate.IsZero())
	assert.Nil(t, created.LastMaintenanceDate)
	assert.NotNil(t, created.Attributes)
}

func TestCreateEquipmentTool_LenientCoercion(t *testing.T) {
	fixed := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = time.Now }()

	tool, _ := newCreateToolFixture(t)

	t.Run("bad attributes json yields empty map", func(t *testing.T) {
		result, err := tool.Execute(tenantCtx("tenant-a"), map[string]any{
			"name":           "Crane",
			"attributesJson": `{broken`,
		})
		require.NoError(t, err)

		var created equipment.Record
		require.NoError(t, json.Unmarshal([]byte(result), &created))
		assert.Empty(t, created.Attributes)
	})

	t.Run("bad maintenance date stays unset", func(t *testing.T) {
		result, err := tool.Execute(tenantCtx("tenant-a"), map[string]any{
			"name":                "Crane",
			"lastMaintenanceDate": "not-a-date",
		})
		require.NoError(t, err)

		var created equipment.Record
		require.NoError(t, json.Unmarshal([]byte(result), &created))
		assert.Nil(t, created.LastMaintenanceDate)
	})

	t.Run("bad purchase date defaults to now", func(t *testing.T) {
		result, err := tool.Execute(tenantCtx("tenant-a"), map[string]any{
			"name":         "Crane",
			"purchaseDate": "yesterday-ish",
		})
		require.NoError(t, err)

		var created equipment.Record
		require.NoError(t, json.Unmarshal([]byte(result), &created))
		assert.Equal(t, fixed, created.PurchaseDate)
	})

	t.Run("valid maintenance date parsed", func(t *testing.T) {
		result, err := tool.Execute(tenantCtx("tenant-a"), map[string]any{
			"name":                "Crane",
			"lastMaintenanceDate": "2024-03-10T08:30:00Z",
		})
		require.NoError(t, err)

		var created equipment.Record
		require.NoError(t, json.Unmarshal([]byte(result), &created))
		require.NotNil(t, created.LastMaintenanceDate)
		assert.Equal(t, time.Date(2024, 3, 10, 8, 30, 0, 0, time.UTC), *created.LastMaintenanceDate)
	})
}

func TestCreateEquipmentTool_TenantFromContextOnly(t *testing.T) {
	tool, store := newCreateToolFixture(t)

	t.Run("no tenant in context fails closed", func(t *testing.T) {
		_, err := tool.Execute(context.Background(), map[string]any{
			"name": "Forklift",
		})
		assert.ErrorIs(t, err, tenant.ErrMissingTenant)
	})

	t.Run("argument cannot override context tenant", func(t *testing.T) {
		result, err := tool.Execute(tenantCtx("tenant-a"), map[string]any{
			"name":     "Forklift",
			"tenantId": "tenant-b",
		})
		require.NoError(t, err)

		var created equipment.Record
		require.NoError(t, json.Unmarshal([]byte(result), &created))
		assert.Equal(t, "tenant-a", created.TenantID)

		_, err = store.Get(context.Background(), "tenant-b", created.ID)
		assert.ErrorIs(t, err, equipment.ErrNotFound)
	})
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		ok    bool
	}{
		{"date only", "2023-01-01", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"rfc3339", "2023-01-01T10:30:00Z", time.Date(2023, 1, 1, 10, 30, 0, 0, time.UTC), true},
		{"no zone", "2023-01-01T10:30:00", time.Date(2023, 1, 1, 10, 30, 0, 0, time.UTC), true},
		{"garbage", "soon", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}
