// Package rbac maps member roles to permissions.
//
// Roles are declared in YAML and may inherit from each other:
//
//	roles:
//	  viewer:
//	    permissions: [project.read]
//	  editor:
//	    inherits: [viewer]
//	    permissions: [project.update]
//
// Permissions are dot separated. A trailing ".*" grants every permission under
// the prefix and a single "*" grants everything. The authorizer resolves
// inheritance once at construction, so checks are map lookups.
//
//	az, err := rbac.NewAuthorizer(ctx, rbac.DefaultSource())
//	if err := az.Can("editor", "project.update"); err != nil {
//		// rbac.ErrInsufficientPermissions or rbac.ErrInvalidRole
//	}
package rbac
