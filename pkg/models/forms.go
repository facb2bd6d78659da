package models

// Form DTOs validated before they are sent to the backend. Tags refer to
// the rule names registered by the validate package.

// UserForm is the create/update payload of /admin/user.
type UserForm struct {
	UserID   string   `json:"userId,omitempty"`
	Username string   `json:"username" validate:"required,letterAndNumber,overLength"`
	Password string   `json:"password,omitempty" validate:"omitempty,min=6,max=20"`
	Name     string   `json:"name" validate:"required,overLength"`
	Nickname string   `json:"nickname,omitempty" validate:"overLength"`
	Phone    string   `json:"phone" validate:"required,mobilePhone"`
	Email    string   `json:"email,omitempty" validate:"email"`
	DeptID   string   `json:"deptId" validate:"required"`
	Role     []string `json:"role" validate:"required,min=1"`
	Post     []string `json:"post,omitempty"`
	LockFlag string   `json:"lockFlag,omitempty" validate:"omitempty,oneof=0 9"`
}

// RoleForm is the create/update payload of /admin/role.
type RoleForm struct {
	RoleID   string `json:"roleId,omitempty"`
	RoleName string `json:"roleName" validate:"required,nameCn,overLength"`
	RoleCode string `json:"roleCode" validate:"required,capital,overLength"`
	RoleDesc string `json:"roleDesc,omitempty" validate:"overLength"`
	DsType   string `json:"dsType,omitempty"`
	DsScope  string `json:"dsScope,omitempty"`
}

// DictForm is the create/update payload of /admin/dict.
type DictForm struct {
	ID          string `json:"id,omitempty"`
	DictType    string `json:"dictType" validate:"required,lowercaseUnderscore,overLength"`
	Description string `json:"description" validate:"required,overLength"`
	SystemFlag  string `json:"systemFlag,omitempty" validate:"omitempty,oneof=0 1"`
	Remarks     string `json:"remarks,omitempty" validate:"overLength"`
}
