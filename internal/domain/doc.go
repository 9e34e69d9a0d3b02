// Package domain models GPS position fixes, reverse-geocoded addresses, and
// the acquisition state that the presentation layer renders.
//
// # Readings
//
// A [Reading] is one position report pushed by a [LocationProvider]. It
// carries WGS-84 coordinates, a horizontal accuracy radius in meters, and the
// time the receiver computed the fix. Providers may replay cached fixes when a
// subscription starts, so consumers compare the timestamp against the current
// time before trusting it.
//
// Horizontal accuracy conventions:
//
//	>= 0   radius (meters) of the 68% confidence circle; smaller is better
//	 < 0   sentinel for an invalid fix, never accepted
//
// NMEA receivers report accuracy either directly (GST sentence, standard
// deviation of latitude and longitude error) or indirectly via HDOP. When only
// HDOP is available the radius is approximated as HDOP × UERE, where UERE is
// the user-equivalent range error of the receiver (≈5 m for consumer GNSS).
//
// # Addresses
//
// An [Address] is the structured result of reverse geocoding. Every field is
// optional. Resolvers may return several candidates ordered by the provider's
// relevance; the acquisition state machine keeps the last one.
//
// # Errors
//
// Provider and resolver errors are classified into an [ErrorKind] with
// [KindOf] and [ResolveKindOf]:
//
//	location_unavailable   transient, the receiver has no fix yet; ignored
//	permission_denied      the device or OS refused access; ends the cycle
//	service_disabled       no location service on this host; ends the cycle
//	timeout                no good-enough fix before the deadline
//	rate_limited           resolver throttled the request
//	resolve_failed         any other resolver failure, including no result
//	unknown                any other provider failure; ends the cycle
package domain
