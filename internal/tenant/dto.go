package tenant

// ValidationError represents a simple validation error from DTO validation.
type ValidationError struct {
	Msg string
}

func (v ValidationError) Error() string { return v.Msg }

type CreateTenantDTO struct {
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
	Tier    Tier   `json:"tier"`
}

func (d CreateTenantDTO) Validate() error {
	if d.Name == "" {
		return ValidationError{Msg: "name is required"}
	}
	if d.OwnerID == "" {
		return ValidationError{Msg: "owner_id is required"}
	}
	if d.Tier != "" && !d.Tier.Valid() {
		return ValidationError{Msg: "unknown tier"}
	}
	return nil
}

type UpgradeTierDTO struct {
	Tier Tier `json:"tier"`
}

func (d UpgradeTierDTO) Validate() error {
	if !d.Tier.Valid() {
		return ValidationError{Msg: "unknown tier"}
	}
	return nil
}

type SuspendTenantDTO struct {
	Reason string `json:"reason"`
}

func (d SuspendTenantDTO) Validate() error {
	if d.Reason == "" {
		return ValidationError{Msg: "reason is required when suspending a tenant"}
	}
	return nil
}
