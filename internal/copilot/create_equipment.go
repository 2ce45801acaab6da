package copilot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/inventoryd/internal/equipment"
	"github.com/fyrsmithlabs/inventoryd/internal/tenant"
)

// timeNow is a variable for testing purposes (allows mocking time).
var timeNow = time.Now

// dateLayouts are accepted for model-supplied date strings, most specific
// first.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CreateEquipmentTool creates a new equipment entry in the inventory.
//
// The tenant is taken from the request context, never from the model's
// arguments, so a conversation can only ever write into its own partition.
type CreateEquipmentTool struct {
	service *equipment.Service
	logger  *zap.Logger
}

// NewCreateEquipmentTool creates the create_equipment tool.
func NewCreateEquipmentTool(service *equipment.Service, logger *zap.Logger) (*CreateEquipmentTool, error) {
	if service == nil {
		return nil, fmt.Errorf("equipment service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreateEquipmentTool{service: service, logger: logger}, nil
}

func (t *CreateEquipmentTool) Name() string { return "create_equipment" }

func (t *CreateEquipmentTool) Description() string {
	return "Creates a new equipment entry in the inventory database"
}

func (t *CreateEquipmentTool) Parameters() map[string]Parameter {
	return map[string]Parameter{
		"name": {
			Type:        "string",
			Description: "The name of the equipment",
			Required:    true,
		},
		"description": {
			Type:        "string",
			Description: "The description of the equipment",
		},
		"category": {
			Type:        "string",
			Description: "The category of the equipment",
		},
		"status": {
			Type:        "string",
			Description: "The status of the equipment",
		},
		"attributesJson": {
			Type:        "string",
			Description: "The attributes of the equipment as JSON string of key-value pairs",
		},
		"lastMaintenanceDate": {
			Type:        "string",
			Description: "The last maintenance date in format YYYY-MM-DDTHH:MM:SS.SSSZ",
		},
		"purchaseDate": {
			Type:        "string",
			Description: "The purchase date in format YYYY-MM-DDTHH:MM:SS.SSSZ",
		},
		"serialNumber": {
			Type:        "string",
			Description: "The serial number of the equipment",
		},
	}
}

// Execute coerces the model-supplied arguments into a record and stores it.
// Coercion is lenient: an unparsable attributes payload yields an empty
// map, an unparsable lastMaintenanceDate stays unset, and a missing or
// unparsable purchaseDate defaults to the current time. None of these
// abort the call; they are logged and defaulted.
func (t *CreateEquipmentTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	tenantID, err := tenant.FromContext(ctx)
	if err != nil {
		return "", err
	}

	rec := &equipment.Record{
		Name:         stringArg(args, "name"),
		Description:  stringArg(args, "description"),
		Category:     stringArg(args, "category"),
		Status:       stringArg(args, "status"),
		SerialNumber: stringArg(args, "serialNumber"),
		Attributes:   map[string]string{},
	}

	if raw := stringArg(args, "attributesJson"); raw != "" {
		attrs := map[string]string{}
		if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
			t.logger.Warn("failed to parse attributes JSON, using empty map",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
		} else {
			rec.Attributes = attrs
		}
	}

	if raw := stringArg(args, "lastMaintenanceDate"); raw != "" {
		if parsed, ok := parseDate(raw); ok {
			rec.LastMaintenanceDate = &parsed
		} else {
			// Unknown is representable for maintenance dates; leave unset.
			t.logger.Warn("invalid format for lastMaintenanceDate",
				zap.String("tenant_id", tenantID),
				zap.String("value", raw),
			)
		}
	}

	if raw := stringArg(args, "purchaseDate"); raw != "" {
		if parsed, ok := parseDate(raw); ok {
			rec.PurchaseDate = parsed
		} else {
			t.logger.Warn("invalid format for purchaseDate, defaulting to now",
				zap.String("tenant_id", tenantID),
				zap.String("value", raw),
			)
			rec.PurchaseDate = timeNow().UTC()
		}
	}

	created, err := t.service.Create(ctx, tenantID, rec)
	if err != nil {
		return "", fmt.Errorf("creating equipment: %w", err)
	}

	t.logger.Info("copilot created equipment",
		zap.String("tenant_id", tenantID),
		zap.String("id", created.ID),
		zap.String("name", created.Name),
	)

	payload, err := json.Marshal(created)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(payload), nil
}

// stringArg reads a string-valued argument, tolerating absent keys and
// non-string values.
func stringArg(args map[string]any, key string) string {
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return s
}

func parseDate(raw string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
