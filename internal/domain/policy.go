package domain

// Role — роль сотрудника магазина.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Permission — именованное право на операцию.
type Permission string

const (
	PermManageEmployees Permission = "manage_employees"
	PermManageProducts  Permission = "manage_products"
	PermViewReports     Permission = "view_reports"
	PermEditProducts    Permission = "edit_products"
	PermViewProducts    Permission = "view_products"
	PermDeleteProducts  Permission = "delete_products"
	PermManageSales     Permission = "manage_sales"
	PermViewSales       Permission = "view_sales"
)

// Policy отвечает на вопрос «разрешена ли роли данная операция».
// Таблица прав строится один раз при старте процесса и передаётся
// по ссылке во все компоненты, которым нужна авторизация.
type Policy struct {
	grants map[Permission]map[Role]struct{}
}

// NewPolicy собирает единственную таблицу соответствия ролей и прав.
func NewPolicy() *Policy {
	table := map[Permission][]Role{
		PermManageEmployees: {RoleAdmin},
		PermManageProducts:  {RoleAdmin, RoleManager},
		PermViewReports:     {RoleAdmin, RoleManager},
		PermEditProducts:    {RoleAdmin, RoleManager, RoleEmployee},
		PermViewProducts:    {RoleAdmin, RoleManager, RoleEmployee},
		PermDeleteProducts:  {RoleAdmin},
		PermManageSales:     {RoleAdmin, RoleManager, RoleEmployee},
		PermViewSales:       {RoleAdmin, RoleManager, RoleEmployee},
	}

	grants := make(map[Permission]map[Role]struct{}, len(table))
	for perm, roles := range table {
		grants[perm] = make(map[Role]struct{}, len(roles))
		for _, role := range roles {
			grants[perm][role] = struct{}{}
		}
	}
	return &Policy{grants: grants}
}

// Allows сообщает, разрешено ли роли право permission.
// Неизвестное право запрещено для всех ролей.
func (p *Policy) Allows(role Role, permission Permission) bool {
	roles, ok := p.grants[permission]
	if !ok {
		return false
	}
	_, ok = roles[role]
	return ok
}
