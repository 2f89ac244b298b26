// Package factory holds the per-provider VM factories and the selector that
// maps a provider tag to one of them.
//
// The provider set is closed: Factory has an unexported method, so only the
// four variants declared here satisfy it. Variants differ only in the data
// they carry (required keys, id prefix, update fields); the behaviour lives
// in base and is shared.
package factory

import (
	"fmt"

	"github.com/devghori1264/aerophoenix/vmfacade/internal/models"
	"github.com/google/uuid"
)

// Factory validates provider parameters and builds and mutates VM records.
type Factory interface {
	Provider() models.Provider
	// RequiredKeys returns the keys Provision copies into the specs map.
	RequiredKeys() []string
	// UpdateKeys returns the spec keys Update may overwrite, in application order.
	UpdateKeys() []string
	Validate(params models.Params) error
	Provision(name string, params models.Params) (*models.VM, error)
	Update(vm *models.VM, changes models.UpdateRequest) *models.VM
	ApplyAction(vm *models.VM, action models.Action) (*models.VM, error)

	sealed()
}

// updateField maps one UpdateRequest field onto a spec key.
type updateField struct {
	key   string
	value func(models.UpdateRequest) (models.SpecValue, bool)
}

var (
	fieldCPU          = intField("cpu", func(u models.UpdateRequest) *int64 { return u.CPU })
	fieldRAMGB        = intField("ram_gb", func(u models.UpdateRequest) *int64 { return u.RAMGB })
	fieldDiskGB       = intField("disk_gb", func(u models.UpdateRequest) *int64 { return u.DiskGB })
	fieldInstanceType = stringField("instance_type", func(u models.UpdateRequest) *string { return u.InstanceType })
	fieldSize         = stringField("size", func(u models.UpdateRequest) *string { return u.Size })
	fieldMachineType  = stringField("machine_type", func(u models.UpdateRequest) *string { return u.MachineType })
)

func intField(key string, get func(models.UpdateRequest) *int64) updateField {
	return updateField{key: key, value: func(u models.UpdateRequest) (models.SpecValue, bool) {
		p := get(u)
		if p == nil {
			return models.SpecValue{}, false
		}
		return models.Int(*p), true
	}}
}

func stringField(key string, get func(models.UpdateRequest) *string) updateField {
	return updateField{key: key, value: func(u models.UpdateRequest) (models.SpecValue, bool) {
		p := get(u)
		if p == nil {
			return models.SpecValue{}, false
		}
		return models.String(*p), true
	}}
}

// base carries a variant's data and implements the shared contract.
type base struct {
	provider models.Provider
	prefix   string
	required []string
	updates  []updateField
}

func (b base) sealed() {}

func (b base) Provider() models.Provider { return b.provider }

func (b base) RequiredKeys() []string {
	return append([]string(nil), b.required...)
}

func (b base) UpdateKeys() []string {
	keys := make([]string, len(b.updates))
	for i, f := range b.updates {
		keys[i] = f.key
	}
	return keys
}

func (b base) Validate(params models.Params) error {
	var missing []string
	for _, k := range b.required {
		if !params.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return &MissingParametersError{Provider: b.provider, Keys: missing}
	}
	return nil
}

func (b base) Provision(name string, params models.Params) (*models.VM, error) {
	if err := b.Validate(params); err != nil {
		return nil, err
	}
	specs := make(models.Specs, len(b.required))
	for _, k := range b.required {
		specs[k] = params[k]
	}
	return &models.VM{
		ID:       b.prefix + uuid.NewString(),
		Name:     name,
		Provider: b.provider,
		Status:   models.StatusStopped,
		Specs:    specs,
	}, nil
}

func (b base) Update(vm *models.VM, changes models.UpdateRequest) *models.VM {
	for _, f := range b.updates {
		v, ok := f.value(changes)
		if !ok {
			continue
		}
		if vm.Specs == nil {
			vm.Specs = models.Specs{}
		}
		vm.Specs[f.key] = v
	}
	return vm
}

// ApplyAction drives the two-state machine. Restart lands directly in
// running; no intermediate state is modelled.
func (b base) ApplyAction(vm *models.VM, action models.Action) (*models.VM, error) {
	switch action {
	case models.ActionStart, models.ActionRestart:
		vm.Status = models.StatusRunning
	case models.ActionStop:
		vm.Status = models.StatusStopped
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	return vm, nil
}
