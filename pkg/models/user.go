package models

import "time"

// Dept is a department as embedded in the user info payload.
type Dept struct {
	DeptID    string `json:"deptId"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
	ParentID  string `json:"parentId"`
}

// Role is a role assigned to a user.
type Role struct {
	RoleID   string `json:"roleId"`
	RoleName string `json:"roleName"`
	RoleCode string `json:"roleCode"`
	RoleDesc string `json:"roleDesc,omitempty"`
}

// Post is a job post assigned to a user.
type Post struct {
	PostID   string `json:"postId"`
	PostCode string `json:"postCode"`
	PostName string `json:"postName"`
	PostSort int    `json:"postSort"`
}

// UserInfo is returned by GET /admin/user/info.
type UserInfo struct {
	UserID      string   `json:"userId"`
	Username    string   `json:"username"`
	Nickname    string   `json:"nickname,omitempty"`
	Name        string   `json:"name,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	Avatar      string   `json:"avatar,omitempty"`
	LockFlag    string   `json:"lockFlag,omitempty"`
	Dept        *Dept    `json:"dept,omitempty"`
	RoleList    []Role   `json:"roleList,omitempty"`
	PostList    []Post   `json:"postList,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// RoleCodes returns the codes of the user's roles.
func (u *UserInfo) RoleCodes() []string {
	codes := make([]string, 0, len(u.RoleList))
	for _, r := range u.RoleList {
		if r.RoleCode != "" {
			codes = append(codes, r.RoleCode)
		}
	}
	return codes
}

// Session is the in-memory token bundle of a logged-in principal.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       string    `json:"user_id,omitempty"`
	Username     string    `json:"username,omitempty"`
	ClientID     string    `json:"client_id,omitempty"`
	License      string    `json:"license,omitempty"`
}

// IsExpired returns true if the token expires within margin.
// A zero expiry is treated as never expiring.
func (s *Session) IsExpired(margin time.Duration) bool {
	if s.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(s.ExpiresAt)
}

// DictItem is a dictionary entry as served by GET /admin/dict/type/{type}.
type DictItem struct {
	ID        string `json:"id,omitempty"`
	DictType  string `json:"dictType,omitempty"`
	Label     string `json:"label"`
	Value     string `json:"value"`
	ListClass string `json:"listClass,omitempty"`
	CSSClass  string `json:"cssClass,omitempty"`
	SortOrder int    `json:"sortOrder,omitempty"`
}

// DictOption is the UI-facing shape of a dictionary entry.
type DictOption struct {
	Label      string `json:"label" yaml:"label"`
	Value      string `json:"value" yaml:"value"`
	ElTagType  string `json:"elTagType,omitempty" yaml:"elTagType,omitempty"`
	ElTagClass string `json:"elTagClass,omitempty" yaml:"elTagClass,omitempty"`
}

// Option converts a dictionary entry to its UI option.
func (d DictItem) Option() DictOption {
	return DictOption{
		Label:      d.Label,
		Value:      d.Value,
		ElTagType:  d.ListClass,
		ElTagClass: d.CSSClass,
	}
}
