package models

// Provider identifies the hosting environment a VM was provisioned on.
type Provider string

const (
	ProviderAWS       Provider = "aws"
	ProviderAzure     Provider = "azure"
	ProviderGCP       Provider = "gcp"
	ProviderOnPremise Provider = "onpremise"
)

// Status is the lifecycle state of a VM.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
)

// Action is a lifecycle operation applied to an existing VM.
type Action string

const (
	ActionStart   Action = "start"
	ActionStop    Action = "stop"
	ActionRestart Action = "restart"
)

// DefaultRequester is recorded when a request names no requester.
const DefaultRequester = "system"

// VM is the uniform record produced for every provider.
// Shared between the factory, server and storage layers.
type VM struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Provider Provider `json:"provider"`
	Status   Status   `json:"status"`
	Specs    Specs    `json:"specs"`
}

// Clone returns a deep copy of the record.
func (vm *VM) Clone() *VM {
	if vm == nil {
		return nil
	}
	out := *vm
	out.Specs = vm.Specs.Clone()
	return &out
}
