package batch

import "strings"

// Role describes a supply-chain party and how its verdicts are labelled.
type Role struct {
	ID         string
	Label      string
	CanInspect bool
}

func (r Role) ApprovedStatus() string {
	return r.Label + " Approved"
}

type Roles map[string]Role

var DefaultRoles = Roles{
	"farmer":      {ID: "farmer", Label: "Farmer", CanInspect: true},
	"wholesaler":  {ID: "wholesaler", Label: "Wholesaler", CanInspect: true},
	"distributor": {ID: "distributor", Label: "Distributor", CanInspect: true},
	"retailer":    {ID: "retailer", Label: "Retailer", CanInspect: true},
}

func (r Roles) Lookup(id string) (Role, bool) {
	role, ok := r[strings.ToLower(strings.TrimSpace(id))]
	return role, ok
}
