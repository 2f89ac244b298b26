package factory

import "github.com/devghori1264/aerophoenix/vmfacade/internal/models"

type AWSFactory struct{ base }

type AzureFactory struct{ base }

type GCPFactory struct{ base }

// OnPremFactory has no primary sizing field of its own; cpu, ram_gb and
// disk_gb are its whole update vocabulary.
type OnPremFactory struct{ base }

func NewAWS() AWSFactory {
	return AWSFactory{base{
		provider: models.ProviderAWS,
		prefix:   "aws-",
		required: []string{"instance_type", "region", "vpc", "ami"},
		updates:  []updateField{fieldInstanceType, fieldRAMGB, fieldCPU, fieldDiskGB},
	}}
}

func NewAzure() AzureFactory {
	return AzureFactory{base{
		provider: models.ProviderAzure,
		prefix:   "azure-",
		required: []string{"size", "resource_group", "image", "vnet"},
		updates:  []updateField{fieldSize, fieldRAMGB, fieldCPU, fieldDiskGB},
	}}
}

func NewGCP() GCPFactory {
	return GCPFactory{base{
		provider: models.ProviderGCP,
		prefix:   "gcp-",
		required: []string{"machine_type", "zone", "base_disk", "project"},
		updates:  []updateField{fieldMachineType, fieldRAMGB, fieldCPU, fieldDiskGB},
	}}
}

func NewOnPrem() OnPremFactory {
	return OnPremFactory{base{
		provider: models.ProviderOnPremise,
		prefix:   "onprem-",
		required: []string{"cpu", "ram_gb", "disk_gb", "nic"},
		updates:  []updateField{fieldCPU, fieldRAMGB, fieldDiskGB},
	}}
}
