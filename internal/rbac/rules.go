package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"quiz:view",
		"attempt:create",
		"attempt:answer",
		"attempt:submit",
		"attempt:abandon",
		"attempt:view-own",
		"user:change_password",
	},
	"teacher": {
		"quiz:create",
		"quiz:view",
		"quiz:view-keys",
		"attempt:view-all",
		"attempt:grade",
		"users:list",
		"user:change_password",
	},
	"admin": {
		"*", // everything
	},
}
