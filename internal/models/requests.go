package models

// CreateRequest asks for a new VM on the named provider.
type CreateRequest struct {
	Provider    Provider `json:"provider"`
	Name        string   `json:"name"`
	Params      Params   `json:"params"`
	RequestedBy string   `json:"requested_by,omitempty"`
}

// UpdateRequest is a sparse patch. Nil fields are left untouched; each
// factory only applies the fields in its own vocabulary.
type UpdateRequest struct {
	CPU          *int64  `json:"cpu,omitempty"`
	RAMGB        *int64  `json:"ram_gb,omitempty"`
	DiskGB       *int64  `json:"disk_gb,omitempty"`
	InstanceType *string `json:"instance_type,omitempty"`
	Size         *string `json:"size,omitempty"`
	MachineType  *string `json:"machine_type,omitempty"`
}

// IsEmpty reports whether no field is set.
func (u UpdateRequest) IsEmpty() bool {
	return u.CPU == nil && u.RAMGB == nil && u.DiskGB == nil &&
		u.InstanceType == nil && u.Size == nil && u.MachineType == nil
}

type ActionRequest struct {
	Action      Action `json:"action"`
	RequestedBy string `json:"requested_by,omitempty"`
}

type VMResponse struct {
	Success bool   `json:"success"`
	VM      *VM    `json:"vm"`
	Error   string `json:"error,omitempty"`
}

type VMListResponse struct {
	Items []*VM `json:"items"`
}

// Requester returns who issued the request, falling back to DefaultRequester.
func Requester(name string) string {
	if name == "" {
		return DefaultRequester
	}
	return name
}
