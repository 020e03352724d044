package descriptor

import (
	"fmt"
	"time"
)

// ChangeType classifies the severity of a catalog change for generated-code
// consumers.
type ChangeType string

const (
	// ChangeAdditive means a new model, field, or endpoint appeared. Safe
	// for existing consumers.
	ChangeAdditive ChangeType = "additive"
	// ChangeBreaking means something was removed or changed shape.
	ChangeBreaking ChangeType = "breaking"
)

// ChangeItem describes a single difference between two catalogs.
type ChangeItem struct {
	Type        ChangeType `json:"type"`
	Category    string     `json:"category"` // "model_added", "model_removed", "field_added", "field_removed", "field_type_changed", "nullable_changed", "endpoint_added", "endpoint_removed", "endpoint_changed"
	Model       string     `json:"model,omitempty"`
	Field       string     `json:"field,omitempty"`
	Endpoint    string     `json:"endpoint,omitempty"`
	OldValue    string     `json:"old_value,omitempty"`
	NewValue    string     `json:"new_value,omitempty"`
	Description string     `json:"description"`
}

// ChangeReport summarizes all differences between two catalog snapshots.
// Watch mode logs it after each regeneration and serves it at /_ferro/changes.
type ChangeReport struct {
	HasChanges    bool         `json:"has_changes"`
	HasBreaking   bool         `json:"has_breaking"`
	AdditiveCount int          `json:"additive_count"`
	BreakingCount int          `json:"breaking_count"`
	Items         []ChangeItem `json:"items"`
	ComparedAt    time.Time    `json:"compared_at"`
}

// Diff compares a previous catalog snapshot against the current one and
// classifies each difference as additive or breaking.
func Diff(prev, curr *Catalog) ChangeReport {
	report := ChangeReport{ComparedAt: time.Now().UTC()}

	for _, name := range prev.ModelNames {
		currModel, exists := curr.Models[name]
		if !exists {
			report.add(ChangeItem{
				Type:        ChangeBreaking,
				Category:    "model_removed",
				Model:       name,
				Description: fmt.Sprintf("Model %q was removed", name),
			})
			continue
		}
		diffModel(&report, prev.Models[name], currModel)
	}
	for _, name := range curr.ModelNames {
		if _, exists := prev.Models[name]; !exists {
			report.add(ChangeItem{
				Type:        ChangeAdditive,
				Category:    "model_added",
				Model:       name,
				Description: fmt.Sprintf("Model %q was added", name),
			})
		}
	}

	for _, name := range prev.EndpointNames {
		currEp, exists := curr.Endpoints[name]
		if !exists {
			report.add(ChangeItem{
				Type:        ChangeBreaking,
				Category:    "endpoint_removed",
				Endpoint:    name,
				Description: fmt.Sprintf("Endpoint %q was removed", name),
			})
			continue
		}
		diffEndpoint(&report, prev.Endpoints[name], currEp)
	}
	for _, name := range curr.EndpointNames {
		if _, exists := prev.Endpoints[name]; !exists {
			report.add(ChangeItem{
				Type:        ChangeAdditive,
				Category:    "endpoint_added",
				Endpoint:    name,
				Description: fmt.Sprintf("Endpoint %q was added", name),
			})
		}
	}

	return report
}

func diffModel(report *ChangeReport, prev, curr ModelDescriptor) {
	currByName := make(map[string]FieldDescriptor, len(curr.Fields))
	for _, f := range curr.Fields {
		currByName[f.Name] = f
	}

	for _, prevField := range prev.Fields {
		currField, exists := currByName[prevField.Name]
		if !exists {
			report.add(ChangeItem{
				Type:        ChangeBreaking,
				Category:    "field_removed",
				Model:       prev.Name,
				Field:       prevField.Name,
				OldValue:    string(prevField.Type),
				Description: fmt.Sprintf("Field %q was removed from model %q", prevField.Name, prev.Name),
			})
			continue
		}

		if prevField.Type != currField.Type {
			report.add(ChangeItem{
				Type:        ChangeBreaking,
				Category:    "field_type_changed",
				Model:       prev.Name,
				Field:       prevField.Name,
				OldValue:    string(prevField.Type),
				NewValue:    string(currField.Type),
				Description: fmt.Sprintf("Field %q type changed from %q to %q", prevField.Name, prevField.Type, currField.Type),
			})
		}

		// A field turning nullable is additive for readers; losing
		// nullability breaks writers that omitted it.
		if prevField.Nullable && !currField.Nullable {
			report.add(ChangeItem{
				Type:        ChangeBreaking,
				Category:    "nullable_changed",
				Model:       prev.Name,
				Field:       prevField.Name,
				OldValue:    "nullable",
				NewValue:    "required",
				Description: fmt.Sprintf("Field %q changed from nullable to required", prevField.Name),
			})
		} else if !prevField.Nullable && currField.Nullable {
			report.add(ChangeItem{
				Type:        ChangeAdditive,
				Category:    "nullable_changed",
				Model:       prev.Name,
				Field:       prevField.Name,
				OldValue:    "required",
				NewValue:    "nullable",
				Description: fmt.Sprintf("Field %q changed from required to nullable", prevField.Name),
			})
		}
	}

	prevByName := make(map[string]bool, len(prev.Fields))
	for _, f := range prev.Fields {
		prevByName[f.Name] = true
	}
	for _, currField := range curr.Fields {
		if !prevByName[currField.Name] {
			report.add(ChangeItem{
				Type:        ChangeAdditive,
				Category:    "field_added",
				Model:       curr.Name,
				Field:       currField.Name,
				NewValue:    string(currField.Type),
				Description: fmt.Sprintf("Field %q was added to model %q", currField.Name, curr.Name),
			})
		}
	}
}

func diffEndpoint(report *ChangeReport, prev, curr EndpointDescriptor) {
	if prev.Route != curr.Route {
		report.add(ChangeItem{
			Type:        ChangeBreaking,
			Category:    "endpoint_changed",
			Endpoint:    prev.Name,
			OldValue:    prev.Route,
			NewValue:    curr.Route,
			Description: fmt.Sprintf("Endpoint %q route changed from %q to %q", prev.Name, prev.Route, curr.Route),
		})
	}
	if prev.ResponseType != curr.ResponseType {
		report.add(ChangeItem{
			Type:        ChangeBreaking,
			Category:    "endpoint_changed",
			Endpoint:    prev.Name,
			OldValue:    prev.ResponseType,
			NewValue:    curr.ResponseType,
			Description: fmt.Sprintf("Endpoint %q response type changed from %q to %q", prev.Name, prev.ResponseType, curr.ResponseType),
		})
	}
	diffMethods(report, prev, curr)
	diffParams(report, prev, curr)
}

// diffMethods compares the accepted HTTP methods. A new method is additive;
// a client calling a removed method breaks.
func diffMethods(report *ChangeReport, prev, curr EndpointDescriptor) {
	currMethods := make(map[string]bool, len(curr.Methods))
	for _, m := range curr.Methods {
		currMethods[m] = true
	}
	prevMethods := make(map[string]bool, len(prev.Methods))
	for _, m := range prev.Methods {
		prevMethods[m] = true
	}

	for _, m := range prev.Methods {
		if !currMethods[m] {
			report.add(ChangeItem{
				Type:        ChangeBreaking,
				Category:    "endpoint_changed",
				Endpoint:    prev.Name,
				OldValue:    m,
				Description: fmt.Sprintf("Endpoint %q no longer accepts %s", prev.Name, m),
			})
		}
	}
	for _, m := range curr.Methods {
		if !prevMethods[m] {
			report.add(ChangeItem{
				Type:        ChangeAdditive,
				Category:    "endpoint_changed",
				Endpoint:    prev.Name,
				NewValue:    m,
				Description: fmt.Sprintf("Endpoint %q now accepts %s", prev.Name, m),
			})
		}
	}
}

func diffParams(report *ChangeReport, prev, curr EndpointDescriptor) {
	currByName := make(map[string]ParamDescriptor, len(curr.Params))
	for _, p := range curr.Params {
		currByName[p.Name] = p
	}

	for _, prevParam := range prev.Params {
		currParam, exists := currByName[prevParam.Name]
		if !exists {
			report.add(ChangeItem{
				Type:        ChangeBreaking,
				Category:    "endpoint_changed",
				Endpoint:    prev.Name,
				Field:       prevParam.Name,
				OldValue:    string(prevParam.Type),
				Description: fmt.Sprintf("Endpoint %q parameter %q was removed", prev.Name, prevParam.Name),
			})
			continue
		}

		if prevParam.Type != currParam.Type || prevParam.Refers != currParam.Refers {
			report.add(ChangeItem{
				Type:        ChangeBreaking,
				Category:    "endpoint_changed",
				Endpoint:    prev.Name,
				Field:       prevParam.Name,
				OldValue:    paramType(prevParam),
				NewValue:    paramType(currParam),
				Description: fmt.Sprintf("Endpoint %q parameter %q type changed from %q to %q", prev.Name, prevParam.Name, paramType(prevParam), paramType(currParam)),
			})
		}
		if prevParam.Location != currParam.Location {
			report.add(ChangeItem{
				Type:        ChangeBreaking,
				Category:    "endpoint_changed",
				Endpoint:    prev.Name,
				Field:       prevParam.Name,
				OldValue:    string(prevParam.Location),
				NewValue:    string(currParam.Location),
				Description: fmt.Sprintf("Endpoint %q parameter %q moved from %s to %s", prev.Name, prevParam.Name, prevParam.Location, currParam.Location),
			})
		}

		// An optional param turning required breaks callers that omitted
		// it; the reverse is safe.
		if !prevParam.Required && currParam.Required {
			report.add(ChangeItem{
				Type:        ChangeBreaking,
				Category:    "endpoint_changed",
				Endpoint:    prev.Name,
				Field:       prevParam.Name,
				OldValue:    "optional",
				NewValue:    "required",
				Description: fmt.Sprintf("Endpoint %q parameter %q became required", prev.Name, prevParam.Name),
			})
		} else if prevParam.Required && !currParam.Required {
			report.add(ChangeItem{
				Type:        ChangeAdditive,
				Category:    "endpoint_changed",
				Endpoint:    prev.Name,
				Field:       prevParam.Name,
				OldValue:    "required",
				NewValue:    "optional",
				Description: fmt.Sprintf("Endpoint %q parameter %q became optional", prev.Name, prevParam.Name),
			})
		}
	}

	prevByName := make(map[string]bool, len(prev.Params))
	for _, p := range prev.Params {
		prevByName[p.Name] = true
	}
	for _, currParam := range curr.Params {
		if prevByName[currParam.Name] {
			continue
		}
		// A new required param breaks existing callers; optional is safe.
		change := ChangeItem{
			Type:        ChangeAdditive,
			Category:    "endpoint_changed",
			Endpoint:    curr.Name,
			Field:       currParam.Name,
			NewValue:    paramType(currParam),
			Description: fmt.Sprintf("Endpoint %q gained optional parameter %q", curr.Name, currParam.Name),
		}
		if currParam.Required {
			change.Type = ChangeBreaking
			change.Description = fmt.Sprintf("Endpoint %q gained required parameter %q", curr.Name, currParam.Name)
		}
		report.add(change)
	}
}

func paramType(p ParamDescriptor) string {
	if p.Refers != "" {
		return p.Refers
	}
	return string(p.Type)
}

func (r *ChangeReport) add(item ChangeItem) {
	r.Items = append(r.Items, item)
	r.HasChanges = true
	switch item.Type {
	case ChangeAdditive:
		r.AdditiveCount++
	case ChangeBreaking:
		r.BreakingCount++
		r.HasBreaking = true
	}
}
