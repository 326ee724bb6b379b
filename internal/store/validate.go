package store

import (
	"fmt"
	"strconv"
	"time"

	"github.com/danielolaszy/tether/pkg/models"
)

const dateLayout = "2006-01-02"

// validateRecord checks a locally edited record against its own declared
// field schema. The first violation is returned as a *ParseError.
func validateRecord(record *models.ProjectRecord) error {
	if record.ID == "" {
		return &ParseError{Reason: "project id is empty"}
	}

	fields := make(map[string]models.Field, len(record.Fields))
	for _, field := range record.Fields {
		if field.Name == "" {
			return &ParseError{Reason: "field with empty name"}
		}
		if _, dup := fields[field.Name]; dup {
			return &ParseError{Reason: fmt.Sprintf("duplicate field %q", field.Name)}
		}
		switch field.Type {
		case models.FieldTypeText, models.FieldTypeNumber, models.FieldTypeSingleSelect,
			models.FieldTypeDate, models.FieldTypeIteration:
		default:
			return &ParseError{Reason: fmt.Sprintf("field %q has unsupported type %q", field.Name, field.Type)}
		}
		fields[field.Name] = field
	}

	seen := make(map[string]struct{}, len(record.Items))
	for _, item := range record.Items {
		if item.ID == "" {
			return &ParseError{Reason: "item with empty id"}
		}
		if _, dup := seen[item.ID]; dup {
			return &ParseError{Reason: fmt.Sprintf("duplicate item %q", item.ID)}
		}
		seen[item.ID] = struct{}{}

		for name, value := range item.Values {
			field, ok := fields[name]
			if !ok {
				return &ParseError{Reason: fmt.Sprintf("item %q has value for unknown field %q", item.ID, name)}
			}
			if err := validateValue(field, item.ID, value); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateValue(field models.Field, itemID, value string) error {
	if value == "" {
		return nil
	}
	switch field.Type {
	case models.FieldTypeNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return &ParseError{
				Reason: fmt.Sprintf("item %q field %q: %q is not a number", itemID, field.Name, value),
			}
		}
	case models.FieldTypeDate:
		if _, err := time.Parse(dateLayout, value); err != nil {
			return &ParseError{
				Reason: fmt.Sprintf("item %q field %q: %q is not a date (want YYYY-MM-DD)", itemID, field.Name, value),
			}
		}
	case models.FieldTypeSingleSelect, models.FieldTypeIteration:
		if !field.HasOption(value) {
			return &ParseError{
				Reason: fmt.Sprintf("item %q field %q: %q is not an allowed option", itemID, field.Name, value),
			}
		}
	}
	return nil
}
