package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/jmake-zxb/jk-ui/pkg/models"
	"github.com/jmake-zxb/jk-ui/pkg/protocol"
	"github.com/jmake-zxb/jk-ui/pkg/validate"
)

// MenuPath serves the principal's raw menu tree.
const MenuPath = "/admin/menu"

// Menus fetches the raw menu tree. Each call returns a fresh tree.
func (c *Client) Menus(ctx context.Context) ([]*models.MenuRecord, error) {
	var menus []*models.MenuRecord
	if err := c.call(ctx, http.MethodGet, MenuPath, nil, nil, &menus); err != nil {
		return nil, fmt.Errorf("menus: %w", err)
	}
	return menus, nil
}

// DictItems returns the items of a dictionary type.
func (c *Client) DictItems(ctx context.Context, dictType string) ([]models.DictItem, error) {
	var items []models.DictItem
	p := "/admin/dict/type/" + url.PathEscape(dictType)
	if err := c.call(ctx, http.MethodGet, p, nil, nil, &items); err != nil {
		return nil, fmt.Errorf("dict %s: %w", dictType, err)
	}
	return items, nil
}

// ResourceSpec describes one backend resource.
type ResourceSpec struct {
	Name string
	Base string
	// ListPath is appended to Base for unpaginated lists.
	ListPath string
	// GetPath is appended to Base before the id.
	GetPath string
	// DeleteByID deletes with DELETE {base}/{id} instead of an id list.
	DeleteByID bool
	// DeletePath is appended to Base for bulk deletes.
	DeletePath string
	// IDField names the primary key in records.
	IDField string
	// ParentField names the parent key of tree-shaped resources.
	ParentField string
	Actions     []string
}

// Catalog lists the resources of the console.
var Catalog = []ResourceSpec{
	{Name: "users", Base: "/admin/user", GetPath: "/details/", IDField: "userId"},
	{Name: "roles", Base: "/admin/role", ListPath: "/list", GetPath: "/details/", IDField: "roleId"},
	{Name: "depts", Base: "/admin/dept", ListPath: "/tree", GetPath: "/", DeleteByID: true, IDField: "deptId", ParentField: "parentId"},
	{Name: "menus", Base: "/admin/menu", ListPath: "/tree", GetPath: "/", DeleteByID: true, IDField: "menuId", ParentField: "parentId"},
	{Name: "dicts", Base: "/admin/dict", ListPath: "/list", GetPath: "/details/", IDField: "id", Actions: []string{"sync"}},
	{Name: "dict-items", Base: "/admin/dict/item", GetPath: "/details/", DeleteByID: true, IDField: "id"},
	{Name: "posts", Base: "/admin/post", ListPath: "/list", GetPath: "/details/", IDField: "postId"},
	{Name: "params", Base: "/admin/param", GetPath: "/details/", IDField: "publicId", Actions: []string{"sync"}},
	{Name: "clients", Base: "/admin/client", GetPath: "/", IDField: "id", Actions: []string{"sync"}},
	{Name: "logs", Base: "/admin/log", IDField: "id"},
	{Name: "tokens", Base: "/admin/sys-token", DeletePath: "/delete", IDField: "id"},
	{Name: "jobs", Base: "/job/sys-job", GetPath: "/", DeleteByID: true, IDField: "jobId", Actions: []string{"start-job", "run-job", "shutdown-job"}},
	{Name: "job-logs", Base: "/job/sys-job-log", IDField: "jobLogId"},
	{Name: "gen-tables", Base: "/gen/table", GetPath: "/", IDField: "id"},
	{Name: "gen-datasources", Base: "/gen/dsconf", ListPath: "/list", GetPath: "/", IDField: "id"},
	{Name: "gen-templates", Base: "/gen/template", ListPath: "/list", GetPath: "/", IDField: "id"},
	{Name: "gen-groups", Base: "/gen/group", ListPath: "/list", GetPath: "/", IDField: "id"},
	{Name: "gen-fieldtypes", Base: "/gen/fieldtype", ListPath: "/list", GetPath: "/details/", IDField: "id"},
	{Name: "gen-forms", Base: "/gen/form", GetPath: "/", IDField: "id"},
	{Name: "mp-accounts", Base: "/mp/mpAccount", GetPath: "/details/", IDField: "id"},
	{Name: "review-documents", Base: DefaultUploadPath, GetPath: "/details/", IDField: "id"},
}

// LookupResource finds a catalog entry by name or base path.
func LookupResource(name string) (ResourceSpec, bool) {
	for _, s := range Catalog {
		if s.Name == name || s.Base == name {
			return s, true
		}
	}
	return ResourceSpec{}, false
}

// ResourceNames returns the catalog names, sorted.
func ResourceNames() []string {
	out := make([]string, 0, len(Catalog))
	for _, s := range Catalog {
		out = append(out, s.Name)
	}
	sort.Strings(out)
	return out
}

// Resource is a CRUD handle on one backend resource.
type Resource struct {
	c    *Client
	spec ResourceSpec
}

// Resource returns a handle for a catalog name or a base path. Unknown
// base paths get the default layout.
func (c *Client) Resource(name string) *Resource {
	spec, ok := LookupResource(name)
	if !ok {
		spec = ResourceSpec{Name: name, Base: "/" + strings.Trim(name, "/"), GetPath: "/details/", IDField: "id"}
	}
	if spec.ListPath == "" {
		spec.ListPath = "/list"
	}
	if spec.GetPath == "" {
		spec.GetPath = "/details/"
	}
	return &Resource{c: c, spec: spec}
}

// Spec returns the resource description.
func (r *Resource) Spec() ResourceSpec {
	return r.spec
}

// Page fetches one page of records.
func (r *Resource) Page(ctx context.Context, query url.Values) (*protocol.Page[models.Record], error) {
	var page protocol.Page[models.Record]
	if err := r.c.call(ctx, http.MethodGet, r.spec.Base+"/page", query, nil, &page); err != nil {
		return nil, fmt.Errorf("%s page: %w", r.spec.Name, err)
	}
	return &page, nil
}

// List fetches the unpaginated list (or tree, for tree resources).
func (r *Resource) List(ctx context.Context, query url.Values) ([]models.Record, error) {
	var list []models.Record
	if err := r.c.call(ctx, http.MethodGet, r.spec.Base+r.spec.ListPath, query, nil, &list); err != nil {
		return nil, fmt.Errorf("%s list: %w", r.spec.Name, err)
	}
	return list, nil
}

// Get fetches one record by id. A missing record returns nil.
func (r *Resource) Get(ctx context.Context, id string) (models.Record, error) {
	var rec models.Record
	if err := r.c.call(ctx, http.MethodGet, r.spec.Base+r.spec.GetPath+url.PathEscape(id), nil, nil, &rec); err != nil {
		return nil, fmt.Errorf("%s get %s: %w", r.spec.Name, id, err)
	}
	return rec, nil
}

// Details looks a record up by field values. A missing record returns nil.
func (r *Resource) Details(ctx context.Context, query url.Values) (models.Record, error) {
	var rec models.Record
	if err := r.c.call(ctx, http.MethodGet, r.spec.Base+"/details", query, nil, &rec); err != nil {
		return nil, fmt.Errorf("%s details: %w", r.spec.Name, err)
	}
	return rec, nil
}

// Exists reports whether a record with field == value exists.
func (r *Resource) Exists(ctx context.Context, field, value string) (bool, error) {
	rec, err := r.Details(ctx, url.Values{field: {value}})
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// Create posts a new record.
func (r *Resource) Create(ctx context.Context, body any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := r.c.call(ctx, http.MethodPost, r.spec.Base, nil, body, &out); err != nil {
		return nil, fmt.Errorf("%s create: %w", r.spec.Name, err)
	}
	return out, nil
}

// Update puts a modified record.
func (r *Resource) Update(ctx context.Context, body any) (json.RawMessage, error) {
	var out json.RawMessage
	if err := r.c.call(ctx, http.MethodPut, r.spec.Base, nil, body, &out); err != nil {
		return nil, fmt.Errorf("%s update: %w", r.spec.Name, err)
	}
	return out, nil
}

// Delete removes records by id.
func (r *Resource) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if !r.spec.DeleteByID {
		if err := r.c.call(ctx, http.MethodDelete, r.spec.Base+r.spec.DeletePath, nil, protocol.DeleteRequest(ids), nil); err != nil {
			return fmt.Errorf("%s delete: %w", r.spec.Name, err)
		}
		return nil
	}
	for _, id := range ids {
		if err := r.c.call(ctx, http.MethodDelete, r.spec.Base+"/"+url.PathEscape(id), nil, nil, nil); err != nil {
			return fmt.Errorf("%s delete %s: %w", r.spec.Name, id, err)
		}
	}
	return nil
}

// Export streams the resource's export file.
func (r *Resource) Export(ctx context.Context, query url.Values) (*Download, error) {
	return r.c.Download(ctx, r.spec.Base+"/export", query)
}

// Action posts to {base}/{action}[/{id}], such as the job controls.
// "sync" actions use PUT as the backend expects.
func (r *Resource) Action(ctx context.Context, action, id string) (json.RawMessage, error) {
	p := r.spec.Base + "/" + strings.Trim(action, "/")
	if id != "" {
		p += "/" + url.PathEscape(id)
	}
	method := http.MethodPost
	if action == "sync" {
		method = http.MethodPut
	}
	var out json.RawMessage
	if err := r.c.call(ctx, method, p, nil, nil, &out); err != nil {
		return nil, fmt.Errorf("%s %s: %w", r.spec.Name, action, err)
	}
	return out, nil
}

// ExistsChecker returns a uniqueness check for field of resource, for use
// with validate.Unique.
func (c *Client) ExistsChecker(resource, field string) validate.ExistsFunc {
	r := c.Resource(resource)
	return func(ctx context.Context, value string) (bool, error) {
		return r.Exists(ctx, field, value)
	}
}

// readAllLimit reads at most n bytes from r.
func readAllLimit(r io.Reader, n int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, n))
}
