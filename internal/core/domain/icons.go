package domain

// IconSet maps category ids to marker icons.
type IconSet struct {
	ByCategory map[string]string `json:"by_category"`
	Default    string            `json:"default"`
}

// Resolve returns the icon for categoryID, falling back to the default icon.
func (s IconSet) Resolve(categoryID string) string {
	if icon, ok := s.ByCategory[categoryID]; ok && icon != "" {
		return icon
	}
	return s.Default
}
