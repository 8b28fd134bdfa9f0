package domain

// Officer is a registered board/management role at a company.
type Officer struct {
	Name     string
	RoleCode string // DAGL/LEDE/NEST/MEDL/VARA
	RoleDesc string
}

// Company is a business entity resolved from the national registry.
// OrgNumber is the canonical identity once resolved; until then a company is
// only known by its normalized name.
type Company struct {
	OrgNumber     string
	Name          string
	Website       string
	EmployeeCount int
	LegalForm     string
	Officers      []Officer
}
