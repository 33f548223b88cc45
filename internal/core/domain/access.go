package domain

type AccessMode string

const (
	AccessGlobal     AccessMode = "global"
	AccessRestricted AccessMode = "restricted"
)

func (m AccessMode) Valid() bool {
	return m == AccessGlobal || m == AccessRestricted
}

// Toggled returns the other mode.
func (m AccessMode) Toggled() AccessMode {
	if m == AccessRestricted {
		return AccessGlobal
	}
	return AccessRestricted
}
