package timezone

import (
	"time"
	_ "time/tzdata"
)

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		panic(err)
	}
}

// Now is the current time in IST, the timezone every supported retailer operates in.
func Now() time.Time {
	return time.Now().In(Location)
}
