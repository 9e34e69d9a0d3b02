package nmea

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/location-fix-service/internal/domain"
)

// DefaultUERE is the user equivalent range error, in meters, used to turn HDOP
// into a horizontal accuracy when the receiver emits no GST sentences.
const DefaultUERE = 5.0

// Decoder turns a stream of NMEA 0183 sentences into readings. RMC sentences
// close an epoch. Accuracy comes from the most recent GST sentence when the
// receiver sends them, otherwise from GGA HDOP scaled by the UERE.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	uere float64

	hdop     float64
	hasHDOP  bool
	gstSigma float64
	hasGST   bool
}

// NewDecoder creates a Decoder. A non-positive uere selects DefaultUERE.
func NewDecoder(uere float64) *Decoder {
	if uere <= 0 {
		uere = DefaultUERE
	}
	return &Decoder{uere: uere}
}

// Decode consumes one sentence. It returns a reading when line is an RMC
// sentence with an active fix, domain.ErrLocationUnknown when the RMC reports
// no fix, and ok=false for everything else including corrupt sentences.
func (d *Decoder) Decode(line string) (r domain.Reading, ok bool, err error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") || !validChecksum(line) {
		return domain.Reading{}, false, nil
	}
	parts := split(line)
	if len(parts[0]) < 5 {
		return domain.Reading{}, false, nil
	}

	// Talker IDs (GP, GN, GL, ...) are ignored.
	switch parts[0][2:] {
	case "GGA":
		d.parseGGA(parts)
	case "GST":
		d.parseGST(parts)
	case "RMC":
		return d.parseRMC(parts)
	}
	return domain.Reading{}, false, nil
}

// accuracy returns the current horizontal accuracy estimate, or -1 when the
// receiver has not reported one yet.
func (d *Decoder) accuracy() float64 {
	switch {
	case d.hasGST:
		return d.gstSigma
	case d.hasHDOP:
		return d.hdop * d.uere
	default:
		return -1
	}
}

// $GPRMC,hhmmss.ss,A,llll.ll,a,yyyyy.yy,a,x.x,x.x,ddmmyy,x.x,a*hh
func (d *Decoder) parseRMC(parts []string) (domain.Reading, bool, error) {
	if len(parts) < 10 {
		return domain.Reading{}, false, nil
	}
	if parts[2] != "A" {
		return domain.Reading{}, false, fmt.Errorf("nmea: void fix: %w", domain.ErrLocationUnknown)
	}

	lat, err := parseCoord(parts[3], parts[4])
	if err != nil {
		return domain.Reading{}, false, nil
	}
	lon, err := parseCoord(parts[5], parts[6])
	if err != nil {
		return domain.Reading{}, false, nil
	}
	ts, err := parseTime(parts[9], parts[1])
	if err != nil {
		return domain.Reading{}, false, nil
	}

	return domain.Reading{
		Coordinate:         domain.Coordinate{Lat: lat, Lon: lon},
		HorizontalAccuracy: d.accuracy(),
		Timestamp:          ts,
	}, true, nil
}

// $GPGGA,hhmmss.ss,llll.ll,a,yyyyy.yy,a,x,xx,x.x,x.x,M,x.x,M,x.x,xxxx*hh
func (d *Decoder) parseGGA(parts []string) {
	if len(parts) < 9 {
		return
	}
	if quality, err := strconv.Atoi(parts[6]); err != nil || quality == 0 {
		d.hasHDOP = false
		return
	}
	if hdop, err := strconv.ParseFloat(parts[8], 64); err == nil {
		d.hdop = hdop
		d.hasHDOP = true
	}
}

// $GPGST,hhmmss.ss,rms,smaj,smin,orient,lat_err,lon_err,alt_err*hh
func (d *Decoder) parseGST(parts []string) {
	if len(parts) < 8 {
		return
	}
	sigLat, errLat := strconv.ParseFloat(parts[6], 64)
	sigLon, errLon := strconv.ParseFloat(parts[7], 64)
	if errLat != nil || errLon != nil {
		return
	}
	d.gstSigma = math.Hypot(sigLat, sigLon)
	d.hasGST = true
}

// split strips the leading $ and the checksum suffix and splits on commas.
func split(line string) []string {
	if idx := strings.Index(line, "*"); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimPrefix(line, "$")
	return strings.Split(line, ",")
}

// parseCoord converts NMEA ddmm.mmmm format to decimal degrees.
func parseCoord(raw, dir string) (float64, error) {
	if raw == "" || dir == "" {
		return 0, fmt.Errorf("nmea: empty coordinate")
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("nmea: parse coordinate %q: %w", raw, err)
	}
	deg := math.Floor(val / 100)
	result := deg + (val-deg*100)/60

	if dir == "S" || dir == "W" {
		result = -result
	}
	return result, nil
}

// parseTime combines the RMC ddmmyy date and hhmmss.ss time fields in UTC.
func parseTime(date, clock string) (time.Time, error) {
	if len(date) != 6 || len(clock) < 6 {
		return time.Time{}, fmt.Errorf("nmea: malformed date %q time %q", date, clock)
	}
	t, err := time.Parse("020106150405", date+clock[:6])
	if err != nil {
		return time.Time{}, fmt.Errorf("nmea: parse timestamp: %w", err)
	}
	if len(clock) > 7 && clock[6] == '.' {
		if frac, err := strconv.ParseFloat("0"+clock[6:], 64); err == nil {
			t = t.Add(time.Duration(frac * float64(time.Second)))
		}
	}
	return t, nil
}

// validChecksum checks the XOR checksum after *.
func validChecksum(line string) bool {
	idx := strings.Index(line, "*")
	if idx < 0 || idx+3 > len(line) {
		return false
	}
	body := line[1:idx]
	var calc byte
	for i := 0; i < len(body); i++ {
		calc ^= body[i]
	}
	expected, err := strconv.ParseUint(line[idx+1:idx+3], 16, 8)
	if err != nil {
		return false
	}
	return byte(expected) == calc
}
