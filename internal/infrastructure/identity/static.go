package identity

import domain "github.com/limetech/storeledger/internal/domain/catalog"

// Static is the single fixed-administrator access policy. Ownership transfer
// belongs to an external access-control component and is out of scope here.
type Static struct {
	admin domain.Address
}

func NewStatic(admin domain.Address) *Static {
	return &Static{admin: admin}
}

func (s *Static) Admin() domain.Address { return s.admin }

func (s *Static) IsAdmin(caller domain.Address) bool {
	return caller != "" && caller == s.admin
}
