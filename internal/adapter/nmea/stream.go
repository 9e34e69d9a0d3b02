package nmea

import (
	"bufio"
	"io"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

// decodeStream feeds every line of r through dec. handle receives each reading
// or fix error and returns false to stop early. The returned error is the
// underlying read error, nil on EOF.
func decodeStream(r io.Reader, dec *Decoder, handle func(domain.Reading, error) bool) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		reading, ok, err := dec.Decode(sc.Text())
		if !ok && err == nil {
			continue
		}
		if !handle(reading, err) {
			return nil
		}
	}
	return sc.Err()
}
