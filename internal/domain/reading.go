package domain

import "time"

// Coordinate represents a WGS-84 latitude/longitude pair in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Reading is a single position report from a location provider.
type Reading struct {
	Coordinate         Coordinate `json:"coordinate"`
	HorizontalAccuracy float64    `json:"horizontal_accuracy"` // meters; negative = invalid
	Timestamp          time.Time  `json:"timestamp"`
}

// Valid reports whether the reading carries a usable accuracy radius.
func (r Reading) Valid() bool {
	return r.HorizontalAccuracy >= 0
}

// Age returns how long before now the reading was taken.
func (r Reading) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}

// Address is a structured postal address. Empty fields are absent.
type Address struct {
	SubThoroughfare    string `json:"sub_thoroughfare,omitempty"` // street number
	Thoroughfare       string `json:"thoroughfare,omitempty"`     // street
	Locality           string `json:"locality,omitempty"`
	AdministrativeArea string `json:"administrative_area,omitempty"` // region / state
	PostalCode         string `json:"postal_code,omitempty"`
	Country            string `json:"country,omitempty"`
}

// IsEmpty reports whether no field of the address is set.
func (a Address) IsEmpty() bool {
	return a == Address{}
}

// AuthorizationStatus is the permission state of a location provider.
type AuthorizationStatus string

const (
	AuthNotDetermined       AuthorizationStatus = "not_determined"
	AuthAuthorizedWhenInUse AuthorizationStatus = "authorized_when_in_use"
	AuthAuthorizedAlways    AuthorizationStatus = "authorized_always"
	AuthDenied              AuthorizationStatus = "denied"
	AuthRestricted          AuthorizationStatus = "restricted"
)

// Authorized reports whether readings may be requested.
func (s AuthorizationStatus) Authorized() bool {
	return s == AuthAuthorizedWhenInUse || s == AuthAuthorizedAlways
}

// Refused reports whether the user or the platform denied access.
func (s AuthorizationStatus) Refused() bool {
	return s == AuthDenied || s == AuthRestricted
}
