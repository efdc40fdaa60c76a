package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/London")
	if err != nil {
		panic(err)
	}
}

// force the timezone to be UK-local since the booking screens render
// UK-local dates and times; computing Year()/Month()/Day() in the host
// timezone would shift day boundaries for overnight bookings.
func Now() time.Time {
	return time.Now().In(Location)
}
