package domain

// Details is the projection of a fix being tagged with a category.
type Details struct {
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Address   string `json:"address"`
	Category  string `json:"category"`
	Date      string `json:"date"`
}

// ProjectDetails describes the best reading of s tagged with category. The
// category falls back to NoCategory when it is not in categories. ok is false
// when s holds no reading to tag.
func ProjectDetails(s AcquisitionState, category string, categories Categories, f Formatter) (d Details, ok bool) {
	r := s.BestReading
	if r == nil {
		return Details{}, false
	}
	d = Details{
		Latitude:  f.Degrees(r.Coordinate.Lat),
		Longitude: f.Degrees(r.Coordinate.Lon),
		Address:   AddressNotFound,
		Category:  categories.Label(category),
		Date:      f.Date(r.Timestamp),
	}
	if s.ResolvedAddress != nil {
		d.Address = f.Address(*s.ResolvedAddress)
	}
	return d, true
}
