package access

// rejection is a single row of the rejection table.
type rejection struct {
	message      string
	requiredRole string
}

var rejections = map[Role]rejection{
	RoleStudent: {
		message:      "Informasi ini khusus Dosen. Hubungi dosen Anda jika perlu akses.",
		requiredRole: "lecturer",
	},
	RoleLecturer: {
		message:      "Informasi ini khusus Administrator sistem.",
		requiredRole: "admin",
	},
	RoleAnonymous: {
		message:      "Akses ditolak. Login diperlukan untuk mengakses informasi ini.",
		requiredRole: "authenticated",
	},
}

var defaultRejection = rejection{
	message:      "Akses ditolak.",
	requiredRole: "unknown",
}

// RejectionMessage returns the user-facing denial text for role and the role
// the caller would need to see the document.
func RejectionMessage(role Role) (message, requiredRole string) {
	r, ok := rejections[role]
	if !ok {
		r = defaultRejection
	}
	return r.message, r.requiredRole
}
