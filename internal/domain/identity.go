package domain

// Identity is the pre-verified caller identity. A zero UserID means anonymous.
type Identity struct {
	UserID    string
	IsPremium bool
}

// Anonymous reports whether no user is attached to the request.
func (i Identity) Anonymous() bool {
	return i.UserID == ""
}
