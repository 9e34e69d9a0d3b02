package domain

// Display strings shown on the location screen.
const (
	MessageStart           = "Tap 'Get My Location' to Start"
	MessageSearching       = "Searching..."
	MessageServiceDisabled = "Location Services Disabled"
	MessageLocationError   = "Error Getting Location"

	AddressSearching = "Searching for Address..."
	AddressError     = "Error Finding Address"
	AddressNotFound  = "No Address Found"

	ButtonStop = "Stop"
	ButtonGet  = "Get My Location"
)

// Status is the display projection of an AcquisitionState.
type Status struct {
	Message     string `json:"message"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	Address     string `json:"address"`
	ButtonTitle string `json:"button_title"`
	CanTag      bool   `json:"can_tag"`
}

// Project maps a state snapshot to display text.
func Project(s AcquisitionState, f Formatter) Status {
	st := Status{ButtonTitle: ButtonGet}
	if s.IsActive {
		st.ButtonTitle = ButtonStop
	}

	if r := s.BestReading; r != nil {
		st.Latitude = f.Degrees(r.Coordinate.Lat)
		st.Longitude = f.Degrees(r.Coordinate.Lon)
		st.CanTag = true
		st.Address = addressText(s, f)
		return st
	}

	switch {
	case s.LastLocationError != nil:
		switch *s.LastLocationError {
		case KindPermissionDenied, KindServiceDisabled:
			st.Message = MessageServiceDisabled
		default:
			st.Message = MessageLocationError
		}
	case s.IsActive:
		st.Message = MessageSearching
	default:
		st.Message = MessageStart
	}
	return st
}

func addressText(s AcquisitionState, f Formatter) string {
	switch {
	case s.ResolvedAddress != nil:
		return f.Address(*s.ResolvedAddress)
	case s.IsResolvingAddress:
		return AddressSearching
	case s.LastResolveError != nil:
		return AddressError
	default:
		return AddressNotFound
	}
}
